package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/timmy/nercompare/internal/compare"
)

func sampleResult(t *testing.T) compare.Result {
	t.Helper()
	r, err := compare.CompareEntityJSON(
		[]byte(`{"entities":[{"entity_name":"A","entity_value":"1","confidence":80},{"entity_name":"B","entity_value":"2"}]}`),
		[]byte(`{"entities":[{"entity_name":"A","entity_value":"1","confidence":80}]}`),
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestWriteResultJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "a_b_comparison.json")
	if err := WriteResult(path, sampleResult(t)); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Entities []map[string]interface{} `json:"entities"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Entities) != 2 || doc.Entities[0]["confidence"] != 96.0 || doc.Entities[1]["confidence"] != "N/A" {
		t.Errorf("entities = %v", doc.Entities)
	}
}

func TestWriteResultXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmp.xlsx")
	if err := WriteResult(path, sampleResult(t)); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("Comparison")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[1][2] != "match" || rows[2][2] != "addition" || rows[2][3] != "N/A" {
		t.Errorf("rows = %v", rows)
	}
}

func TestWriteCategoryResultXLSX(t *testing.T) {
	r := compare.CategoryResult{"people": compare.CompareCategory([]string{"Alice"}, []string{"Bob"})}
	path := filepath.Join(t.TempDir(), "cats.xlsx")
	if err := WriteCategoryResult(path, r); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, _ := f.GetRows("Categories")
	if len(rows) != 3 || rows[1][1] != "Alice" || rows[2][2] != "omission" {
		t.Errorf("rows = %v", rows)
	}
}
