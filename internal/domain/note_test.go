package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jupiter/internal/domain"
)

func TestTextContentKeepsParagraphBreaks(t *testing.T) {
	text := "Agenda\n\nBring notes\n  indented"
	c := domain.TextContent("\r\n" + text + "\n\n")
	assert.Equal(t, domain.NoteContent{
		domain.ParagraphBlock{Text: "Agenda"},
		domain.ParagraphBlock{Text: ""},
		domain.ParagraphBlock{Text: "Bring notes"},
		domain.ParagraphBlock{Text: "  indented"},
	}, c)
	assert.Equal(t, text, c.PlainText())
}

func TestTextContentOfBlankTextIsEmpty(t *testing.T) {
	assert.Empty(t, domain.TextContent(""))
	assert.Empty(t, domain.TextContent(" \n\t\n"))
}
