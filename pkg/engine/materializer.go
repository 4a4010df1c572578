package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmorph/morphctl/pkg/document"
	"github.com/openmorph/morphctl/pkg/directive"
)

// Materializer evaluates value directives in place, replacing each
// single-key directive mapping with its computed plain value. Entity
// directives and reference expressions pass through untouched for the
// later planning and resolution stages.
type Materializer struct {
	// BaseDir anchors relative $fileContent/$datasetCsv paths. Paths
	// are first tried as given, then relative to BaseDir.
	BaseDir string
}

// NewMaterializer returns a materializer rooted at baseDir.
func NewMaterializer(baseDir string) *Materializer {
	return &Materializer{BaseDir: baseDir}
}

// Apply walks the tree rooted at n and evaluates every value directive,
// mutating nodes in place. Returns a materialization error on the first
// bad directive operand or unreadable resource.
func (m *Materializer) Apply(n *document.Node) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case document.KindSequence:
		for _, item := range n.Items {
			if err := m.Apply(item); err != nil {
				return err
			}
		}
		return nil
	case document.KindMapping:
		if c := directive.Classify(n); c.Class == directive.ClassValue {
			value, err := m.evaluate(c.Key, c.Body)
			if err != nil {
				return err
			}
			*n = document.Node{Kind: document.KindScalar, Value: value}
			return nil
		}
		for _, e := range n.Entries {
			if err := m.Apply(e.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (m *Materializer) evaluate(key string, body *document.Node) (interface{}, error) {
	switch {
	case key == directive.JSONKey:
		return m.jsonValue(body)
	case key == directive.DatasetKey:
		return m.datasetValue(body)
	case key == directive.DatasetCSVKey:
		return m.datasetCSVValue(body)
	case key == directive.IDKey:
		return m.idValue(body)
	case strings.HasPrefix(key, directive.FileContentKey):
		return m.fileContentValue(key, body)
	default:
		return nil, NewMaterializationError(fmt.Sprintf("unknown value directive %s", key), nil)
	}
}

// jsonValue serializes the operand as canonical JSON text. Mapping keys
// keep their document order so repeated runs produce byte-identical
// output for unchanged input.
func (m *Materializer) jsonValue(body *document.Node) (interface{}, error) {
	s, err := body.JSONString()
	if err != nil {
		return nil, NewMaterializationError("$json operand is not serializable", err)
	}
	return s, nil
}

// datasetValue converts a sequence of scalars into the dataset JSON
// shape: an ordered list of {name, value} records, one per input value.
func (m *Materializer) datasetValue(body *document.Node) (interface{}, error) {
	if !body.IsSequence() {
		return nil, NewMaterializationError(
			fmt.Sprintf("$dataset must be a sequence, not %s", body.Kind), nil)
	}
	records := document.Sequence()
	for _, item := range body.Items {
		if !item.IsScalar() {
			return nil, NewMaterializationError("$dataset values must be scalars", nil)
		}
		record := document.Mapping()
		record.Set("name", document.Scalar(item.Value))
		record.Set("value", document.Scalar(item.Value))
		records.Items = append(records.Items, record)
	}
	s, err := records.JSONString()
	if err != nil {
		return nil, NewMaterializationError("$dataset is not serializable", err)
	}
	return s, nil
}

// datasetCSVValue loads a .csv file and converts each row to a record
// keyed by the header row, serialized as dataset JSON.
func (m *Materializer) datasetCSVValue(body *document.Node) (interface{}, error) {
	path, err := m.resolveFile(directive.DatasetCSVKey, body, "csv")
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, NewMaterializationError(fmt.Sprintf("cannot read %s", path), err)
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	header, err := reader.Read()
	if err == io.EOF {
		return "[]", nil
	}
	if err != nil {
		return nil, NewMaterializationError(fmt.Sprintf("malformed csv %s", path), err)
	}
	records := document.Sequence()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewMaterializationError(fmt.Sprintf("malformed csv %s", path), err)
		}
		record := document.Mapping()
		for i, col := range header {
			if i < len(row) {
				record.Set(col, document.Scalar(row[i]))
			}
		}
		records.Items = append(records.Items, record)
	}
	s, err := records.JSONString()
	if err != nil {
		return nil, NewMaterializationError(fmt.Sprintf("csv %s is not serializable", path), err)
	}
	return s, nil
}

// fileContentValue returns the verbatim text of a local file.
func (m *Materializer) fileContentValue(key string, body *document.Node) (interface{}, error) {
	path, err := m.resolveFile(key, body, "")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMaterializationError(fmt.Sprintf("cannot read %s", path), err)
	}
	return string(data), nil
}

// idValue canonicalizes a loose "path:name" operand into full reference
// syntax, with the collection path expanded to its API path. Resolution
// happens later, against the registry or the live service.
func (m *Materializer) idValue(body *document.Node) (interface{}, error) {
	s, ok := body.StringValue()
	if !ok {
		return nil, NewMaterializationError("$id must be a string in format ${id:path:name}", nil)
	}
	ref, ok := directive.NormalizeIDExpr(s)
	if !ok {
		return nil, NewMaterializationError(
			fmt.Sprintf("$id value %q is not in format ${id:path:name}", s), nil)
	}
	return ref.String(), nil
}

// resolveFile validates the operand as a local file path, trying it as
// given first and then relative to BaseDir.
func (m *Materializer) resolveFile(key string, body *document.Node, ext string) (string, error) {
	path, ok := body.StringValue()
	if !ok {
		return "", NewMaterializationError(fmt.Sprintf("%s must be a file path", key), nil)
	}
	if ext != "" && !strings.HasSuffix(path, "."+ext) {
		return "", NewMaterializationError(
			fmt.Sprintf("%s value %s must be a .%s file", key, path, ext), nil)
	}
	if fileExists(path) {
		return path, nil
	}
	if m.BaseDir != "" {
		joined := filepath.Join(m.BaseDir, path)
		if fileExists(joined) {
			return joined, nil
		}
	}
	return "", NewMaterializationError(
		fmt.Sprintf("%s value %s must be a file in the config dir", key, path), nil)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
