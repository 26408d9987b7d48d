// Package writer is the document-edit operation layer. Edits are expressed
// as typed op batches; an Executor applies them, either by dispatching to
// the connected desktop client (which drives the live Office application)
// or by recording them for dry runs and tests.
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/domain"
)

// OpType names one edit operation.
type OpType string

// Supported operations.
const (
	OpDuplicateSlide            OpType = "duplicate_slide"
	OpDeleteSlide               OpType = "delete_slide"
	OpAddSlide                  OpType = "add_slide"
	OpSetChartDataLabelPosition OpType = "set_chart_data_label_position"
	OpSetTextFrame              OpType = "set_text_frame"
	OpSetCells                  OpType = "set_cells"
	OpInsertRows                OpType = "insert_rows"
)

// DataLabelPositions is the allowed set for set_chart_data_label_position.
var DataLabelPositions = []string{
	"above", "below", "best_fit", "center",
	"inside_base", "inside_end", "left", "outside_end", "right",
}

func validDataLabelPosition(p string) bool {
	for _, allowed := range DataLabelPositions {
		if p == allowed {
			return true
		}
	}
	return false
}

// Op is a single edit. Target names the slide or sheet the op touches;
// everything else rides in Params.
type Op struct {
	Type   OpType         `json:"type"`
	Target string         `json:"target,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// DuplicateSlide duplicates the named slide, inserting the copy after it.
func DuplicateSlide(name string) Op {
	return Op{Type: OpDuplicateSlide, Target: name}
}

// DeleteSlide removes the named slide.
func DeleteSlide(name string) Op {
	return Op{Type: OpDeleteSlide, Target: name}
}

// AddSlide inserts a new slide after the named one (or at the end when
// afterName is empty), using the given layout.
func AddSlide(afterName, layout string) Op {
	return Op{Type: OpAddSlide, Target: afterName, Params: map[string]any{
		"layout": layout,
	}}
}

// SetChartDataLabelPosition moves the data labels of one chart series.
func SetChartDataLabelPosition(slide, chart string, series int, position string) Op {
	return Op{Type: OpSetChartDataLabelPosition, Target: slide, Params: map[string]any{
		"chart":    chart,
		"series":   series,
		"position": position,
	}}
}

// SetTextFrame replaces the text of a shape's text frame.
func SetTextFrame(slide, shape, text string) Op {
	return Op{Type: OpSetTextFrame, Target: slide, Params: map[string]any{
		"shape": shape,
		"text":  text,
	}}
}

// SetCells writes a rectangular block of values starting at ref.
func SetCells(sheet, ref string, values [][]any) Op {
	return Op{Type: OpSetCells, Target: sheet, Params: map[string]any{
		"ref":    ref,
		"values": values,
	}}
}

// InsertRows inserts count blank rows before row at (1-based).
func InsertRows(sheet string, at, count int) Op {
	return Op{Type: OpInsertRows, Target: sheet, Params: map[string]any{
		"at":    at,
		"count": count,
	}}
}

// validate checks one op's target and parameters.
func (op Op) validate() error {
	switch op.Type {
	case OpDuplicateSlide, OpDeleteSlide:
		if op.Target == "" {
			return errors.New("slide name required")
		}
	case OpAddSlide:
		// Both the anchor slide and the layout are optional.
	case OpSetChartDataLabelPosition:
		if op.Target == "" {
			return errors.New("slide name required")
		}
		if stringParam(op.Params, "chart") == "" {
			return errors.New("chart name required")
		}
		pos := stringParam(op.Params, "position")
		if !validDataLabelPosition(pos) {
			return fmt.Errorf("unknown data label position %q (allowed: %s)",
				pos, strings.Join(DataLabelPositions, ", "))
		}
	case OpSetTextFrame:
		if op.Target == "" {
			return errors.New("slide name required")
		}
		if stringParam(op.Params, "shape") == "" {
			return errors.New("shape name required")
		}
	case OpSetCells:
		if op.Target == "" {
			return errors.New("sheet name required")
		}
		if stringParam(op.Params, "ref") == "" {
			return errors.New("cell reference required")
		}
		if op.Params["values"] == nil {
			return errors.New("values required")
		}
	case OpInsertRows:
		if op.Target == "" {
			return errors.New("sheet name required")
		}
		if intParam(op.Params, "at") < 1 {
			return errors.New("row number must be >= 1")
		}
		if intParam(op.Params, "count") < 1 {
			return errors.New("row count must be >= 1")
		}
	default:
		return fmt.Errorf("unknown op type %q", op.Type)
	}
	return nil
}

// Batch is a set of ops applied to one document as a unit.
type Batch struct {
	ID           string          `json:"id"`
	DocumentPath string          `json:"document_path"`
	Kind         domain.FileKind `json:"kind,omitempty"`
	Ops          []Op            `json:"ops"`
}

// NewBatch creates a batch with a fresh ID, deriving the document kind from
// the path.
func NewBatch(documentPath string, ops ...Op) Batch {
	return Batch{
		ID:           uuid.New().String(),
		DocumentPath: documentPath,
		Kind:         domain.KindForPath(documentPath),
		Ops:          ops,
	}
}

// Validate checks the batch shape and every op in it.
func (b Batch) Validate() error {
	if b.DocumentPath == "" {
		return errors.New("writer: document path required")
	}
	if len(b.Ops) == 0 {
		return errors.New("writer: batch has no ops")
	}
	for i, op := range b.Ops {
		if err := op.validate(); err != nil {
			return fmt.Errorf("writer: op %d (%s): %w", i, op.Type, err)
		}
	}
	return nil
}

// OpError describes one failed op inside a batch.
type OpError struct {
	Index   int    `json:"index"`
	Op      OpType `json:"op,omitempty"`
	Message string `json:"message"`
}

func (e OpError) Error() string {
	return fmt.Sprintf("op %d (%s): %s", e.Index, e.Op, e.Message)
}

// Result reports what the executor did with a batch.
type Result struct {
	BatchID string    `json:"batch_id"`
	Applied int       `json:"applied"`
	Failed  int       `json:"failed"`
	Errors  []OpError `json:"errors,omitempty"`
}

// stringParam reads a string parameter, tolerating absence.
func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	s, _ := params[key].(string)
	return s
}

// intParam reads an integer parameter. JSON decoding produces float64, so
// both forms are accepted.
func intParam(params map[string]any, key string) int {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
