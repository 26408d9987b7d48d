package writer

import (
	"testing"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch(t *testing.T) {
	b := NewBatch("/tmp/deck.pptx", DuplicateSlide("Q3 Overview"))

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, "/tmp/deck.pptx", b.DocumentPath)
	assert.Equal(t, domain.KindPowerPoint, b.Kind)
	require.Len(t, b.Ops, 1)
	assert.Equal(t, OpDuplicateSlide, b.Ops[0].Type)
}

func TestBatch_Validate_Shape(t *testing.T) {
	empty := NewBatch("/tmp/deck.pptx")
	require.Error(t, empty.Validate())
	assert.Contains(t, empty.Validate().Error(), "no ops")

	noPath := Batch{ID: "x", Ops: []Op{DuplicateSlide("a")}}
	require.Error(t, noPath.Validate())
	assert.Contains(t, noPath.Validate().Error(), "document path")
}

func TestBatch_Validate_Ops(t *testing.T) {
	tests := []struct {
		name    string
		op      Op
		wantErr string
	}{
		{"duplicate slide ok", DuplicateSlide("Summary"), ""},
		{"duplicate slide missing name", DuplicateSlide(""), "slide name"},
		{"delete slide ok", DeleteSlide("Old"), ""},
		{"add slide ok", AddSlide("", "Title and Content"), ""},
		{"data label ok", SetChartDataLabelPosition("S1", "Revenue Chart", 0, "outside_end"), ""},
		{"data label bad position", SetChartDataLabelPosition("S1", "Revenue Chart", 0, "diagonal"), "data label position"},
		{"data label missing chart", SetChartDataLabelPosition("S1", "", 0, "center"), "chart name"},
		{"text frame ok", SetTextFrame("S1", "Title 1", "New title"), ""},
		{"text frame missing shape", SetTextFrame("S1", "", "x"), "shape name"},
		{"set cells ok", SetCells("Sheet1", "B2", [][]any{{1, 2}}), ""},
		{"set cells missing ref", SetCells("Sheet1", "", [][]any{{1}}), "cell reference"},
		{"set cells missing sheet", SetCells("", "B2", [][]any{{1}}), "sheet name"},
		{"insert rows ok", InsertRows("Sheet1", 4, 2), ""},
		{"insert rows bad row", InsertRows("Sheet1", 0, 2), ">= 1"},
		{"insert rows bad count", InsertRows("Sheet1", 4, 0), ">= 1"},
		{"unknown type", Op{Type: "melt_slide", Target: "S1"}, "unknown op"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBatch("/tmp/deck.pptx", tt.op)
			err := b.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDataLabelPositions_AllValid(t *testing.T) {
	for _, pos := range DataLabelPositions {
		op := SetChartDataLabelPosition("S1", "Chart 1", 0, pos)
		b := NewBatch("/tmp/deck.pptx", op)
		assert.NoError(t, b.Validate(), "position %q should validate", pos)
	}
}

func TestOpError_Error(t *testing.T) {
	e := OpError{Index: 2, Op: OpDeleteSlide, Message: "slide not found"}
	assert.Equal(t, "op 2 (delete_slide): slide not found", e.Error())
}
