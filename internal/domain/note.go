package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Block is one node of a note's content. The set of variants is closed.
type Block interface {
	BlockKind() string
	sealed()
}

type ParagraphBlock struct {
	Text string `json:"text"`
}

type HeadingBlock struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

// ListItem may nest further items.
type ListItem struct {
	Text  string     `json:"text"`
	Items []ListItem `json:"items,omitempty"`
}

type BulletedListBlock struct {
	Items []ListItem `json:"items"`
}

type NumberedListBlock struct {
	Items []ListItem `json:"items"`
}

type ChecklistItem struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

type ChecklistBlock struct {
	Title string          `json:"title,omitempty"`
	Items []ChecklistItem `json:"items"`
}

type TableBlock struct {
	WithHeader bool       `json:"with_header"`
	Rows       [][]string `json:"rows"`
}

type CodeBlock struct {
	Code            string `json:"code"`
	Language        string `json:"language,omitempty"`
	ShowLineNumbers bool   `json:"show_line_numbers,omitempty"`
}

type QuoteBlock struct {
	Text string `json:"text"`
}

type DividerBlock struct{}

type LinkBlock struct {
	URL string `json:"url"`
}

type EntityReferenceBlock struct {
	EntityTag Kind     `json:"entity_tag"`
	RefID     EntityID `json:"ref_id"`
}

func (ParagraphBlock) BlockKind() string       { return "paragraph" }
func (HeadingBlock) BlockKind() string         { return "heading" }
func (BulletedListBlock) BlockKind() string    { return "bulleted-list" }
func (NumberedListBlock) BlockKind() string    { return "numbered-list" }
func (ChecklistBlock) BlockKind() string       { return "checklist" }
func (TableBlock) BlockKind() string           { return "table" }
func (CodeBlock) BlockKind() string            { return "code" }
func (QuoteBlock) BlockKind() string           { return "quote" }
func (DividerBlock) BlockKind() string         { return "divider" }
func (LinkBlock) BlockKind() string            { return "link" }
func (EntityReferenceBlock) BlockKind() string { return "entity-reference" }

func (ParagraphBlock) sealed()       {}
func (HeadingBlock) sealed()         {}
func (BulletedListBlock) sealed()    {}
func (NumberedListBlock) sealed()    {}
func (ChecklistBlock) sealed()       {}
func (TableBlock) sealed()           {}
func (CodeBlock) sealed()            {}
func (QuoteBlock) sealed()           {}
func (DividerBlock) sealed()         {}
func (LinkBlock) sealed()            {}
func (EntityReferenceBlock) sealed() {}

func decodeBlock(kind string, raw json.RawMessage) (Block, error) {
	switch kind {
	case "paragraph":
		var v ParagraphBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "heading":
		var v HeadingBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "bulleted-list":
		var v BulletedListBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "numbered-list":
		var v NumberedListBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "checklist":
		var v ChecklistBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "table":
		var v TableBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "code":
		var v CodeBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "quote":
		var v QuoteBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "divider":
		return DividerBlock{}, nil
	case "link":
		var v LinkBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	case "entity-reference":
		var v EntityReferenceBlock
		err := json.Unmarshal(raw, &v)
		return v, err
	}
	return nil, Invalid("content", "unknown block kind %q", kind)
}

func validateBlock(b Block) error {
	switch v := b.(type) {
	case HeadingBlock:
		if v.Level < 1 || v.Level > 3 {
			return Invalid("content", "heading level %d is out of range", v.Level)
		}
	case TableBlock:
		for i, row := range v.Rows {
			if len(row) != len(v.Rows[0]) {
				return Invalid("content", "table row %d has %d cells, want %d", i, len(row), len(v.Rows[0]))
			}
		}
	case LinkBlock:
		if v.URL == "" {
			return Invalid("content", "link blocks need a url")
		}
	case EntityReferenceBlock:
		if v.RefID == BadRefID {
			return Invalid("content", "entity references need a ref id")
		}
	}
	return nil
}

// NoteContent is an ordered list of blocks serialized with a "kind" tag per block.
type NoteContent []Block

func (c NoteContent) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(c))
	for _, b := range c {
		body, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
		kind, _ := json.Marshal(b.BlockKind())
		fields["kind"] = kind
		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, tagged)
	}
	return json.Marshal(out)
}

func (c *NoteContent) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	blocks := make(NoteContent, 0, len(raws))
	for i, raw := range raws {
		var head struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		b, err := decodeBlock(head.Kind, raw)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	*c = blocks
	return nil
}

// TextContent turns plain text into one paragraph per line. Blank lines inside the
// text stay as empty paragraphs so PlainText gives the text back; leading and
// trailing blank lines are dropped.
func TextContent(text string) NoteContent {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	first, last := 0, len(lines)
	for first < last && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	for last > first && strings.TrimSpace(lines[last-1]) == "" {
		last--
	}
	var out NoteContent
	for _, line := range lines[first:last] {
		if strings.TrimSpace(line) == "" {
			line = ""
		}
		out = append(out, ParagraphBlock{Text: line})
	}
	return out
}

// PlainText renders the textual blocks of c, one per line.
func (c NoteContent) PlainText() string {
	var lines []string
	for _, b := range c {
		switch v := b.(type) {
		case ParagraphBlock:
			lines = append(lines, v.Text)
		case HeadingBlock:
			lines = append(lines, v.Text)
		case QuoteBlock:
			lines = append(lines, v.Text)
		case CodeBlock:
			lines = append(lines, v.Code)
		case LinkBlock:
			lines = append(lines, v.URL)
		}
	}
	return strings.Join(lines, "\n")
}

type Note struct {
	EntityBase
	NoteCollectionRefID EntityID    `json:"note_collection_ref_id"`
	Domain              NoteDomain  `json:"domain"`
	SourceEntityRefID   EntityID    `json:"source_entity_ref_id"`
	Content             NoteContent `json:"content"`
}

func (*Note) Kind() Kind              { return KindNote }
func (n *Note) ParentRefID() EntityID { return n.NoteCollectionRefID }

func (n *Note) Links() Links {
	return Links{"domain": string(n.Domain), "source_entity_ref_id": optionalRef(n.SourceEntityRefID)}
}

func NewNote(ctx Ctx, collection EntityID, domain NoteDomain, source EntityID, content NoteContent) (*Note, error) {
	if source == BadRefID {
		return nil, Invalid("source_entity_ref_id", "notes belong to an entity")
	}
	for _, b := range content {
		if err := validateBlock(b); err != nil {
			return nil, err
		}
	}
	if content == nil {
		content = NoteContent{}
	}
	return &Note{EntityBase: newBase(ctx), NoteCollectionRefID: collection, Domain: domain, SourceEntityRefID: source, Content: content}, nil
}

// UpdateContent replaces the content. It reports whether anything changed.
func (n *Note) UpdateContent(ctx Ctx, content NoteContent) (bool, error) {
	for _, b := range content {
		if err := validateBlock(b); err != nil {
			return false, err
		}
	}
	if content == nil {
		content = NoteContent{}
	}
	before, _ := json.Marshal(n.Content)
	after, _ := json.Marshal(content)
	if string(before) == string(after) {
		return false, nil
	}
	n.Content = content
	n.record(ctx, "UpdateContent", nil)
	return true, nil
}

func (n *Note) IsEmpty() bool { return len(n.Content) == 0 }
