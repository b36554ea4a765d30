package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// TableState is the tri-state existence of a tab.
type TableState int

const (
	StateAbsent TableState = iota
	StateEmpty
	StateHasData
)

func (s TableState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateEmpty:
		return "exists-empty"
	case StateHasData:
		return "exists-with-data"
	}
	return fmt.Sprintf("TableState(%d)", int(s))
}

// Spreadsheet is a client bound to one spreadsheet ID.
type Spreadsheet struct {
	client *Client
	id     string
}

// ID returns the spreadsheet ID.
func (s *Spreadsheet) ID() string { return s.id }

type valueRange struct {
	Range          string          `json:"range,omitempty"`
	MajorDimension string          `json:"majorDimension,omitempty"`
	Values         [][]interface{} `json:"values"`
}

// ReadRange returns the formatted cell values of tab!cells. Trailing empty
// rows and cells are omitted by the API, so rows may be ragged.
func (s *Spreadsheet) ReadRange(ctx context.Context, tab, cells string) ([][]string, error) {
	endpoint := valuesEndpoint(s.id, A1(tab, cells)) + "?majorDimension=ROWS"
	body, err := s.client.doRequest(ctx, s.client.reads, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", A1(tab, cells), err)
	}

	var vr valueRange
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&vr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	rows := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = cellString(cell)
		}
	}
	return rows, nil
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = make([]interface{}, len(row))
		for j, cell := range row {
			out[i][j] = cell
		}
	}
	return out
}

// AppendRows appends rows after the table found at tab!cells using
// USER_ENTERED input and INSERT_ROWS. The request is sent once.
func (s *Spreadsheet) AppendRows(ctx context.Context, tab, cells string, rows [][]string) error {
	params := url.Values{}
	params.Set("valueInputOption", "USER_ENTERED")
	params.Set("insertDataOption", "INSERT_ROWS")
	endpoint := valuesEndpoint(s.id, A1(tab, cells)) + ":append?" + params.Encode()

	if _, err := s.client.doRequest(ctx, s.client.writes, http.MethodPost, endpoint, valueRange{
		MajorDimension: "ROWS",
		Values:         toValues(rows),
	}); err != nil {
		return fmt.Errorf("appending %d rows to %s: %w", len(rows), A1(tab, cells), err)
	}
	return nil
}

// UpdateRange overwrites tab!cells with rows using RAW input.
func (s *Spreadsheet) UpdateRange(ctx context.Context, tab, cells string, rows [][]string) error {
	endpoint := valuesEndpoint(s.id, A1(tab, cells)) + "?valueInputOption=RAW"
	if _, err := s.client.doRequest(ctx, s.client.writes, http.MethodPut, endpoint, valueRange{
		Range:          A1(tab, cells),
		MajorDimension: "ROWS",
		Values:         toValues(rows),
	}); err != nil {
		return fmt.Errorf("updating %s: %w", A1(tab, cells), err)
	}
	return nil
}

type batchUpdateRequest struct {
	Requests []request `json:"requests"`
}

type request struct {
	AddSheet *addSheetRequest `json:"addSheet,omitempty"`
}

type addSheetRequest struct {
	Properties sheetProperties `json:"properties"`
}

type sheetProperties struct {
	Title string `json:"title"`
}

// AddSheet creates a new tab.
func (s *Spreadsheet) AddSheet(ctx context.Context, title string) error {
	endpoint := fmt.Sprintf("/spreadsheets/%s:batchUpdate", url.PathEscape(s.id))
	body := batchUpdateRequest{Requests: []request{{
		AddSheet: &addSheetRequest{Properties: sheetProperties{Title: title}},
	}}}
	if _, err := s.client.doRequest(ctx, s.client.writes, http.MethodPost, endpoint, body); err != nil {
		return fmt.Errorf("adding sheet %q: %w", title, err)
	}
	return nil
}

// SheetTitles lists the spreadsheet's tab titles.
func (s *Spreadsheet) SheetTitles(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("/spreadsheets/%s?fields=%s", url.PathEscape(s.id), url.QueryEscape("sheets.properties.title"))
	body, err := s.client.doRequest(ctx, s.client.reads, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("listing sheets: %w", err)
	}

	var resp struct {
		Sheets []struct {
			Properties sheetProperties `json:"properties"`
		} `json:"sheets"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		titles = append(titles, sh.Properties.Title)
	}
	return titles, nil
}

// State reports whether tab is absent, present without a header row, or
// present with at least a header.
func (s *Spreadsheet) State(ctx context.Context, tab string) (TableState, error) {
	titles, err := s.SheetTitles(ctx)
	if err != nil {
		return StateAbsent, err
	}
	found := false
	for _, t := range titles {
		if t == tab {
			found = true
			break
		}
	}
	if !found {
		return StateAbsent, nil
	}

	rows, err := s.ReadRange(ctx, tab, "1:1")
	if err != nil {
		return StateAbsent, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return StateEmpty, nil
	}
	return StateHasData, nil
}
