package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/capability.report/internal/spc"
)

// ErrInvalidRequest marks a request whose shape is wrong before any
// measurement is looked at.
var ErrInvalidRequest = errors.New("invalid analysis request")

// maxRequestFileSize bounds input documents read from disk.
const maxRequestFileSize = 1 * 1024 * 1024

// requestValidate checks request shape. Field names in messages use the
// json tag so API clients see the names they sent.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	requestValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// GroupInput is the raw input for one group slot.
type GroupInput struct {
	DeclaredCount int    `json:"declared_count" yaml:"declared_count" validate:"gte=1"`
	Values        string `json:"values" yaml:"values"`
}

// Request describes one complete analysis: raw group input, an optional
// subgroup size and any number of control-limit pairs.
type Request struct {
	Analyst string `json:"analyst,omitempty" yaml:"analyst" validate:"max=200"`
	// GroupCount is the number of slots in the run. Zero means one slot per
	// entry in Groups.
	GroupCount int `json:"group_count,omitempty" yaml:"group_count" validate:"gte=0,lte=1000"`
	// SubgroupSize selects the d2 constant. Zero means infer it from the
	// groups' declared counts.
	SubgroupSize int          `json:"subgroup_size,omitempty" yaml:"subgroup_size" validate:"gte=0"`
	Groups       []GroupInput `json:"groups" yaml:"groups" validate:"required,min=1,max=1000,dive"`
	Limits       []spc.Limits `json:"limits,omitempty" yaml:"limits" validate:"max=100"`
}

// Validate checks the request shape. Measurement problems are not shape
// problems; they are reported per group by Analyze.
func (r *Request) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.GroupCount > 0 && len(r.Groups) > r.GroupCount {
		return fmt.Errorf("%w: %d groups supplied for group_count %d", ErrInvalidRequest, len(r.Groups), r.GroupCount)
	}
	for i, l := range r.Limits {
		if !l.Finite() {
			return fmt.Errorf("%w: limits[%d] must be finite numbers, got LCL=%g UCL=%g", ErrInvalidRequest, i, l.LCL, l.UCL)
		}
	}
	return nil
}

// Slots returns the number of group slots the request describes.
func (r *Request) Slots() int {
	if r.GroupCount > 0 {
		return r.GroupCount
	}
	return len(r.Groups)
}

// LoadRequest reads a request document from disk. JSON and YAML are
// accepted, chosen by file extension.
func LoadRequest(path string) (*Request, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}
	if info.Size() > maxRequestFileSize {
		return nil, fmt.Errorf("input file too large: %d bytes (max %d)", info.Size(), maxRequestFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	req := &Request{}
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".json":
		if err := json.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("failed to parse input JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("failed to parse input YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("input file must be .json, .yaml or .yml, got %q", ext)
	}

	return req, nil
}
