package reports

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed queries.yaml
var defaultQueries []byte

// Queries holds the stored SQL the gateway sends to the engine.
type Queries struct {
	Login           string `yaml:"login"`
	Branches        string `yaml:"branches"`
	WidgetTemplates string `yaml:"widget_templates"`
	WebWidgets      string `yaml:"web_widgets"`
	ReportList      string `yaml:"report_list"`
	Users           string `yaml:"users"`
	Notifications   string `yaml:"notifications"`
	OrderDetail     string `yaml:"order_detail"`
}

// DefaultQueries returns the queries compiled into the binary.
func DefaultQueries() (*Queries, error) {
	return ParseQueries(defaultQueries)
}

// LoadQueries reads a queries file, falling back to the compiled-in
// queries for any entry the file leaves out.
func LoadQueries(path string) (*Queries, error) {
	if path == "" {
		return DefaultQueries()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read queries file %s", path)
	}

	q, err := DefaultQueries()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, q); err != nil {
		return nil, errors.Wrapf(err, "failed to parse queries file %s", path)
	}
	return q, q.validate()
}

func ParseQueries(data []byte) (*Queries, error) {
	var q Queries
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, errors.Wrap(err, "failed to parse queries")
	}
	return &q, q.validate()
}

func (q *Queries) validate() error {
	for name, sql := range map[string]string{
		"login":            q.Login,
		"branches":         q.Branches,
		"widget_templates": q.WidgetTemplates,
		"web_widgets":      q.WebWidgets,
		"report_list":      q.ReportList,
		"users":            q.Users,
		"notifications":    q.Notifications,
		"order_detail":     q.OrderDetail,
	} {
		if sql == "" {
			return fmt.Errorf("query %q is empty", name)
		}
	}
	return nil
}
