package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jupiter/internal/app"
	"jupiter/internal/domain"
	"jupiter/internal/engine"
	"jupiter/internal/migrate"
	"jupiter/internal/server"
)

func saveSession(e engine.Engine, s engine.Session) error {
	return app.SaveSession(e.Settings.SessionPath(), app.Session{
		AuthToken:      s.AuthToken,
		UserRefID:      s.User.RefID,
		WorkspaceRefID: s.Workspace.RefID,
		EmailAddress:   s.User.EmailAddress,
	})
}

func workspaceFlags(enable, disable []string) domain.WorkspaceFeatureFlags {
	flags := domain.WorkspaceFeatureFlags{}
	for _, f := range enable {
		flags[domain.WorkspaceFeature(f)] = true
	}
	for _, f := range disable {
		flags[domain.WorkspaceFeature(f)] = false
	}
	return flags
}

func userFlags(enable, disable []string) domain.UserFeatureFlags {
	flags := domain.UserFeatureFlags{}
	for _, f := range enable {
		flags[domain.UserFeature(f)] = true
	}
	for _, f := range disable {
		flags[domain.UserFeature(f)] = false
	}
	return flags
}

func initCmd() *cobra.Command {
	var args engine.InitArgs
	var enable, disable, enableUser []string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a user with their workspace and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args.WorkspaceFlags = workspaceFlags(enable, disable)
			args.UserFlags = userFlags(enableUser, nil)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Init(ctx, args)
				if err != nil {
					return err
				}
				if err := saveSession(e, s); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Initialized workspace %q (%d) for %s\n", s.Workspace.Name, s.Workspace.RefID, s.User.EmailAddress)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&args.UserName, "name", "", "your name")
	cmd.Flags().StringVar(&args.UserEmail, "email", "", "your email address")
	cmd.Flags().StringVar(&args.UserTimezone, "timezone", "UTC", "your IANA timezone")
	cmd.Flags().StringVar(&args.WorkspaceName, "workspace", "", "workspace name")
	cmd.Flags().StringVar(&args.RootProjectName, "root-project", "", "name of the root project")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "workspace features to enable")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "workspace features to disable")
	cmd.Flags().StringSliceVar(&enableUser, "enable-user-feature", nil, "user features to enable, like gamification")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Login(ctx, engine.LoginArgs{EmailAddress: email})
				if err != nil {
					return err
				}
				if err := saveSession(e, s); err != nil {
					return err
				}
				fmt.Printf("Logged in as %s\n", s.User.EmailAddress)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return app.ClearSession(s.SessionPath())
		},
	}
}

func workspaceCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workspace", Short: "Show and change the workspace"}
	ws.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the user and workspace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, e engine.Engine, id engine.Identity) error {
				v, err := e.LoadWorkspace(ctx, id, struct{}{})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Feature", "Enabled"})
				for _, f := range domain.AllWorkspaceFeatures {
					tw.AppendRow(table.Row{f, v.Workspace.FeatureFlags[f]})
				}
				fmt.Printf("%s (%d), default project %d, user %s\n", v.Workspace.Name, v.Workspace.RefID, v.Workspace.DefaultProjectRefID, v.User.EmailAddress)
				tw.Render()
				return nil
			})
		},
	})
	ws.AddCommand(workspaceUpdateCmd())
	ws.AddCommand(workspaceFeatureFlagsCmd())
	return ws
}

func workspaceUpdateCmd() *cobra.Command {
	var name, defaultProject string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rename the workspace or change its default project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := optRef(cmd, "default-project", defaultProject)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateWorkspace, engine.UpdateWorkspaceArgs{
				Name:                optString(cmd, "name", name),
				DefaultProjectRefID: project,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&defaultProject, "default-project", "", "id of the new default project")
	return cmd
}

func workspaceFeatureFlagsCmd() *cobra.Command {
	var enable, disable []string
	cmd := &cobra.Command{
		Use:   "feature-flags",
		Short: "Turn workspace features on or off",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.ChangeWorkspaceFeatureFlags, engine.WorkspaceFeatureFlagsArgs{
				FeatureFlags: workspaceFlags(enable, disable),
			})
		},
	}
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "features to enable")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "features to disable")
	return cmd
}

func userCmd() *cobra.Command {
	var name, timezone string
	var enable, disable []string
	update := &cobra.Command{
		Use:   "update",
		Short: "Update your name, timezone or user features",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.UpdateUser, engine.UpdateUserArgs{
				Name:         optString(cmd, "name", name),
				Timezone:     optString(cmd, "timezone", timezone),
				FeatureFlags: userFlags(enable, disable),
			})
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&timezone, "timezone", "", "IANA timezone")
	update.Flags().StringSliceVar(&enable, "enable", nil, "user features to enable")
	update.Flags().StringSliceVar(&disable, "disable", nil, "user features to disable")
	user := &cobra.Command{Use: "user", Short: "Manage your user"}
	user.AddCommand(update)
	return user
}

func apiKeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "api-key", Short: "Manage API keys for the HTTP API"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key. The key is only shown once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.CreateAPIKey, engine.CreateAPIKeyArgs{Name: name})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")

	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.ListAPIKeys, struct{}{})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, engine.Engine.DeleteAPIKey, engine.DeleteAPIKeyArgs{ID: args[0]})
		},
	}
	keys.AddCommand(create, list, del)
	return keys
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Show or import the workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the workspace config as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, e engine.Engine, id engine.Identity) error {
				v, err := e.ShowConfig(ctx, id, struct{}{})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				fmt.Print(v.YAML)
				return nil
			})
		},
	})
	var file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Replace the workspace config with a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var raw []byte
			var err error
			if file == "-" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.ImportConfig, engine.ImportConfigArgs{YAML: string(raw)})
		},
	}
	imp.Flags().StringVarP(&file, "file", "f", "", "YAML file, or - for stdin")
	_ = imp.MarkFlagRequired("file")
	cfg.AddCommand(imp)
	return cfg
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := migrate.Version(ctx, e.DB, e.Settings.Migrations())
				if err != nil {
					return err
				}
				fmt.Printf("schema version %d\n", v)
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	var webhookAttempts int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				log := newLogger(e.Settings)
				hooks := &server.Dispatcher{Engine: e, Log: log, Attempts: webhookAttempts}
				handler, err := server.New(server.Config{
					Engine:   e,
					Log:      log,
					Registry: prometheus.NewRegistry(),
					Hooks:    hooks,
					Local:    e.Settings.IsLocal(),
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				log.WithField("addr", addr).Infof("serving Jupiter API on http://%s%s (docs at /docs)", addr, server.BasePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				hooks.Wait()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8010", "listen address")
	cmd.Flags().IntVar(&webhookAttempts, "webhook-attempts", 4, "delivery attempts per webhook notification")
	return cmd
}
