package engine

// QueryOptions are merged over the execute defaults. Nil or empty fields keep
// the default.
type QueryOptions struct {
	DatabaseID     *int
	RunAsync       bool
	Schema         string
	TemplateParams map[string]any // forwarded verbatim, rendered by the engine
}

type executeRequest struct {
	ClientID       string `json:"client_id"`
	CTASMethod     string `json:"ctas_method"`
	DatabaseID     int    `json:"database_id"`
	ExpandData     bool   `json:"expand_data"`
	JSON           bool   `json:"json"`
	RunAsync       bool   `json:"runAsync"`
	SelectAsCTA    bool   `json:"select_as_cta"`
	SQL            string `json:"sql"`
	Schema         string `json:"schema,omitempty"`
	TemplateParams string `json:"templateParams,omitempty"`
}

type Column struct {
	ColumnName  string `json:"column_name,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	TypeGeneric int    `json:"type_generic,omitempty"`
	IsDttm      bool   `json:"is_dttm,omitempty"`
}

// Row is one result row keyed by column name.
type Row map[string]any

type QueryResult struct {
	QueryID         int      `json:"query_id"`
	Status          string   `json:"status"`
	Columns         []Column `json:"columns,omitempty"`
	SelectedColumns []Column `json:"selected_columns,omitempty"`
	Data            []Row    `json:"data"`
}

func (r *QueryResult) Empty() bool {
	return r == nil || len(r.Data) == 0
}

// Database is one entry of the engine's database catalog.
type Database struct {
	ID            int    `json:"id"`
	Name          string `json:"database_name"`
	UUID          string `json:"uuid,omitempty"`
	Backend       string `json:"backend,omitempty"`
	AllowRunAsync bool   `json:"allow_run_async,omitempty"`
}

type databaseResponse struct {
	Count  int        `json:"count"`
	Result []Database `json:"result"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	Refresh  bool   `json:"refresh"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type csrfResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Message string `json:"message"`
	Msg     string `json:"msg"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e errorResponse) text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Msg != "":
		return e.Msg
	case len(e.Errors) > 0:
		return e.Errors[0].Message
	}
	return ""
}
