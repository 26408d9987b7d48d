package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- FileKind tests ---

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path string
		want FileKind
	}{
		{"/data/report.xlsx", KindExcel},
		{"/data/Report.XLSX", KindExcel},
		{"/data/macro.xlsm", KindExcel},
		{"/data/deck.pptx", KindPowerPoint},
		{"/data/old-deck.ppt", KindPowerPoint},
		{"/data/memo.docx", KindWord},
		{"/data/sales.csv", KindCSV},
		{"/data/notes.md", KindText},
		{"/data/readme.txt", KindText},
		{"/data/archive.zip", KindOther},
		{"/data/noext", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, KindForPath(tt.path))
		})
	}
}

func TestMimeForPath(t *testing.T) {
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		MimeForPath("book.xlsx"))
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		MimeForPath("deck.pptx"))
	assert.Equal(t, "application/octet-stream", MimeForPath("thing.bin"))
}

func TestIsTextual(t *testing.T) {
	assert.True(t, KindCSV.IsTextual())
	assert.True(t, KindText.IsTextual())
	assert.False(t, KindExcel.IsTextual())
	assert.False(t, KindPowerPoint.IsTextual())
	assert.False(t, KindOther.IsTextual())
}

// --- ConversationKey tests ---

func TestConversationKey(t *testing.T) {
	tests := []struct {
		name string
		user string
		doc  string
		want string
	}{
		{"with document", "u1", "/data/report.xlsx", "u1:/data/report.xlsx"},
		{"without document", "u1", "", "u1"},
		{"different docs differ", "u1", "/data/other.xlsx", "u1:/data/other.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConversationKey(tt.user, tt.doc))
		})
	}
}

// --- JSON shape tests ---

func TestChunkJSONExcludesEmbedding(t *testing.T) {
	chunk := Chunk{
		ID:         "c1",
		DocumentID: "d1",
		Seq:        0,
		Text:       "Revenue grew 12% in Q3",
		Locator:    "Sheet1!A1:D10",
		Embedding:  []float32{0.1, 0.2, 0.3},
	}

	data, err := json.Marshal(chunk)
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, "0.1")
	assert.NotContains(t, raw, "embedding")
	assert.Contains(t, raw, "Sheet1!A1:D10")

	var decoded Chunk
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Embedding)
	assert.Equal(t, chunk.Text, decoded.Text)
}

func TestDocumentJSON(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	doc := Document{
		ID:           "d1",
		Name:         "report.xlsx",
		OriginalPath: "/data/report.xlsx",
		Kind:         KindExcel,
		SizeBytes:    2048,
		ChunkCount:   7,
		IndexedAt:    now,
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc, decoded)
}

func TestConversationJSON_OmitsEmpty(t *testing.T) {
	conv := Conversation{ID: "conv-1", UserID: "u1"}

	data, err := json.Marshal(conv)
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, "documentPath")
	assert.NotContains(t, raw, "messages")
}

// --- TurnState tests ---

func TestTurnStateAddStep(t *testing.T) {
	state := TurnState{ConversationID: "conv-1", Route: "formula", Query: "sum column B"}

	state.AddStep("retrieve", "3 chunks", 12*time.Millisecond)
	state.AddStep("complete", "gpt-4o", 900*time.Millisecond)

	require.Len(t, state.Steps, 2)
	assert.Equal(t, "retrieve", state.Steps[0].Name)
	assert.Equal(t, "complete", state.Steps[1].Name)
	assert.Equal(t, 900*time.Millisecond, state.Steps[1].Duration)
}
