package survey

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// QuestionType discriminates the question variants.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
	QuestionOpenText       QuestionType = "open_text"
)

// ErrMalformedDocument is returned when generated content is not a survey document.
var ErrMalformedDocument = errors.New("malformed survey document")

// Question is a tagged variant over multiple_choice, rating and open_text.
// Options is only meaningful for multiple_choice and Scale only for rating.
type Question struct {
	Type    QuestionType `json:"type" validate:"required,oneof=multiple_choice rating open_text"`
	Text    string       `json:"text" validate:"required"`
	Options []string     `json:"options,omitempty" validate:"required_if=Type multiple_choice,omitempty,min=2,max=10,dive,required"`
	Scale   int          `json:"scale,omitempty" validate:"required_if=Type rating,omitempty,min=3,max=10"`
}

// Document is a generated survey. The JSON it was parsed from is kept and
// returned to callers as stored, compacted.
type Document struct {
	Title     string
	Questions []Question

	raw json.RawMessage
}

// NewDocument builds a Document from typed fields.
func NewDocument(title string, questions []Question) (Document, error) {
	raw, err := json.Marshal(struct {
		Title     string     `json:"title"`
		Questions []Question `json:"questions"`
	}{Title: title, Questions: questions})
	if err != nil {
		return Document{}, fmt.Errorf("marshal survey document: %w", err)
	}
	return ParseDocument(raw)
}

// ParseDocument parses generator output. The content must be a JSON object with
// a "title" field and an array "questions" field. Title and questions are decoded
// best-effort; Validate applies the per-question constraints.
func ParseDocument(content []byte) (Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(content, &fields); err != nil {
		return Document{}, fmt.Errorf("%w: not a JSON object: %v", ErrMalformedDocument, err)
	}
	if fields == nil {
		return Document{}, fmt.Errorf("%w: not a JSON object", ErrMalformedDocument)
	}

	rawTitle, ok := fields["title"]
	if !ok {
		return Document{}, fmt.Errorf("%w: missing title", ErrMalformedDocument)
	}
	var title string
	_ = json.Unmarshal(rawTitle, &title)

	rawQuestions, ok := fields["questions"]
	if !ok {
		return Document{}, fmt.Errorf("%w: missing questions", ErrMalformedDocument)
	}
	var elems []json.RawMessage
	if !bytes.HasPrefix(bytes.TrimSpace(rawQuestions), []byte("[")) || json.Unmarshal(rawQuestions, &elems) != nil {
		return Document{}, fmt.Errorf("%w: questions is not an array", ErrMalformedDocument)
	}
	questions := make([]Question, len(elems))
	for i, elem := range elems {
		// A mistyped field leaves the rest of the question decoded.
		_ = json.Unmarshal(elem, &questions[i])
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, content); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	return Document{
		Title:     title,
		Questions: questions,
		raw:       compact.Bytes(),
	}, nil
}

// IsZero reports whether the document was never parsed.
func (d Document) IsZero() bool {
	return len(d.raw) == 0
}

// Raw returns the JSON the document was parsed from.
func (d Document) Raw() json.RawMessage {
	return d.raw
}

func (d Document) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return d.raw, nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the document as its JSON text.
func (d Document) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, errors.New("survey document is empty")
	}
	return string(d.raw), nil
}

// Scan reads a document stored by Value.
func (d *Document) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan survey document: unsupported type %T", src)
	}
	parsed, err := ParseDocument(data)
	if err != nil {
		return fmt.Errorf("scan survey document: %w", err)
	}
	*d = parsed
	return nil
}

var questionValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the document is well typed and every question meets the
// constraints of its variant: 2-10 options for multiple_choice and a scale of
// 3-10 for rating.
func (d Document) Validate() error {
	var typed struct {
		Title     string     `json:"title"`
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal(d.raw, &typed); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if strings.TrimSpace(typed.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrMalformedDocument)
	}
	for i, q := range typed.Questions {
		if err := questionValidator.Struct(q); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				msgs := make([]string, 0, len(fieldErrs))
				for _, fe := range fieldErrs {
					msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
				}
				return fmt.Errorf("%w: question %d: %s", ErrMalformedDocument, i, strings.Join(msgs, ", "))
			}
			return fmt.Errorf("%w: question %d: %v", ErrMalformedDocument, i, err)
		}
	}
	return nil
}
