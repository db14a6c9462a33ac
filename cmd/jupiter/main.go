package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jupiter/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "jupiter",
	Short: "Jupiter CLI",
	Long: `Jupiter keeps a workspace of projects, inbox tasks and the recurring things that produce them.
Core concepts:
- Workspace: one per user, with a tree of projects and a default project.
- Inbox tasks: the unit of work. Habits, chores, metrics, persons, big plans and pushed
  Slack or email messages all end up as inbox tasks.
- Gen: creates the inbox tasks of the period for every recurring source. Run it daily.
- Sync: mirrors remote iCal calendars into schedule streams.
- Stats and GC: recompute statistics and archive finished work.
- Archive and remove cascade to everything an entity owns.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", domain.ErrorKind(err), err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("JUPITER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("today", "", "day to act on (YYYY-MM-DD or text like \"next monday\")")
	rootCmd.PersistentFlags().StringSlice("env-file", nil, "env files to load (default .env, .env.local)")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("today", rootCmd.PersistentFlags().Lookup("today"))
	_ = viper.BindPFlag("env-file", rootCmd.PersistentFlags().Lookup("env-file"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(inboxTaskCmd())
	rootCmd.AddCommand(habitCmd())
	rootCmd.AddCommand(choreCmd())
	rootCmd.AddCommand(bigPlanCmd())
	rootCmd.AddCommand(vacationCmd())
	rootCmd.AddCommand(metricCmd())
	rootCmd.AddCommand(personCmd())
	rootCmd.AddCommand(slackTaskCmd())
	rootCmd.AddCommand(emailTaskCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(genCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(gcCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(scoresCmd())
	rootCmd.AddCommand(genLogCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
}
