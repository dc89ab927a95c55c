package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"chantier-tracker/internal/models"
)

// Importer loads clients and chantiers from CSV exports. Columns are found
// by header name (French or English); a bad row is reported and skipped.
type Importer struct {
	clients   *ClientService
	chantiers *ChantierService
}

func NewImporter(clients *ClientService, chantiers *ChantierService) *Importer {
	return &Importer{clients: clients, chantiers: chantiers}
}

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

var clientColumns = map[string]string{
	"name": "name", "nom": "name", "raison_sociale": "name",
	"contact": "contact_name", "contact_name": "contact_name",
	"email": "email", "e-mail": "email", "mail": "email",
	"phone": "phone", "telephone": "phone", "téléphone": "phone", "tel": "phone",
	"address": "address", "adresse": "address",
	"postal_code": "postal_code", "code_postal": "postal_code", "cp": "postal_code",
	"city": "city", "ville": "city",
	"siret": "siret",
	"notes": "notes",
}

var chantierColumns = map[string]string{
	"title": "title", "titre": "title", "nom": "title",
	"description": "description",
	"address": "address", "adresse": "address",
	"budget": "budget",
	"priority": "priority", "priorite": "priority", "priorité": "priority",
	"status": "status", "statut": "status",
	"start_date": "start_date", "date_debut": "start_date", "début": "start_date",
	"end_date": "end_date", "date_fin": "end_date", "fin": "end_date",
	"client": "client", "client_name": "client",
}

var priorityAliases = map[string]models.ChantierPriority{
	"low": models.PriorityBasse, "basse": models.PriorityBasse,
	"medium": models.PriorityMoyenne, "normale": models.PriorityMoyenne, "moyenne": models.PriorityMoyenne,
	"high": models.PriorityHaute, "haute": models.PriorityHaute,
	"urgent": models.PriorityCritique, "urgente": models.PriorityCritique, "critique": models.PriorityCritique,
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// csvRows reads the header and yields each following record keyed by
// canonical column name. Line numbers are those of the source file.
func csvRows(r io.Reader, columns map[string]string, fn func(line int, row map[string]string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Violations{"file": "empty"}.Err()
		}
		return Violations{"file": "unreadable_csv"}.Err()
	}
	// semicolon exports from spreadsheets arrive as a single column
	if len(header) == 1 && strings.Contains(header[0], ";") {
		return Violations{"file": "use_comma_separator"}.Err()
	}

	index := make(map[int]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := columns[key]; ok {
			index[i] = canon
		}
	}
	if len(index) == 0 {
		return Violations{"file": "no_known_columns"}.Err()
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if err != nil && !errors.As(err, &perr) {
			return fmt.Errorf("reading csv: %w", err)
		}
		var line int
		row := make(map[string]string, len(index))
		if err == nil {
			line, _ = reader.FieldPos(0)
			for i, v := range record {
				if canon, ok := index[i]; ok {
					row[canon] = strings.TrimSpace(v)
				}
			}
		} else {
			line = perr.StartLine
			row = nil
		}
		if ferr := fn(line, row); ferr != nil {
			return ferr
		}
	}
}

func (im *Importer) ImportClients(ctx context.Context, actor Actor, r io.Reader) (*ImportResult, error) {
	res := &ImportResult{Errors: []RowError{}}
	err := csvRows(r, clientColumns, func(line int, row map[string]string) error {
		if row == nil {
			res.fail(line, "malformed row")
			return nil
		}
		if isBlank(row) {
			res.Skipped++
			return nil
		}
		_, err := im.clients.Create(ctx, actor, ClientInput{
			Name:        row["name"],
			ContactName: row["contact_name"],
			Email:       row["email"],
			Phone:       row["phone"],
			Address:     row["address"],
			PostalCode:  row["postal_code"],
			City:        row["city"],
			Siret:       row["siret"],
			Notes:       row["notes"],
		})
		return res.record(line, err)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (im *Importer) ImportChantiers(ctx context.Context, actor Actor, r io.Reader) (*ImportResult, error) {
	res := &ImportResult{Errors: []RowError{}}
	err := csvRows(r, chantierColumns, func(line int, row map[string]string) error {
		if row == nil {
			res.fail(line, "malformed row")
			return nil
		}
		if isBlank(row) {
			res.Skipped++
			return nil
		}
		in, msg, err := im.chantierInput(ctx, row)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if msg != "" {
			res.fail(line, msg)
			return nil
		}
		_, err = im.chantiers.Create(ctx, actor, in)
		return res.record(line, err)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// chantierInput maps one row. A row problem comes back as a message; an
// error means the lookup itself failed and the import stops.
func (im *Importer) chantierInput(ctx context.Context, row map[string]string) (ChantierInput, string, error) {
	in := ChantierInput{
		Title:       row["title"],
		Description: row["description"],
		Address:     row["address"],
		Status:      models.ChantierStatus(strings.ToLower(row["status"])),
	}

	if v := row["budget"]; v != "" {
		b, err := strconv.ParseFloat(strings.ReplaceAll(strings.ReplaceAll(v, " ", ""), ",", "."), 64)
		if err != nil {
			return in, "invalid budget " + strconv.Quote(v), nil
		}
		in.Budget = b
	}
	if v := strings.ToLower(row["priority"]); v != "" {
		p, ok := priorityAliases[v]
		if !ok {
			return in, "unknown priority " + strconv.Quote(v), nil
		}
		in.Priority = p
	}
	for _, f := range []struct {
		key string
		dst **time.Time
	}{{"start_date", &in.StartDate}, {"end_date", &in.EndDate}} {
		if v := row[f.key]; v != "" {
			t, err := parseDate(v)
			if err != nil {
				return in, fmt.Sprintf("invalid %s %q", f.key, v), nil
			}
			*f.dst = &t
		}
	}
	if name := row["client"]; name != "" {
		c, err := im.clients.FindByName(ctx, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return in, "unknown client " + strconv.Quote(name), nil
			}
			return in, "", err
		}
		in.ClientID = &c.ID
	}
	return in, "", nil
}

func parseDate(v string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, v)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func isBlank(row map[string]string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func (r *ImportResult) fail(line int, msg string) {
	r.Errors = append(r.Errors, RowError{Line: line, Message: msg})
}

// record counts a created row or keeps the row error. Only unexpected
// failures (not validation or conflicts) abort the import.
func (r *ImportResult) record(line int, err error) error {
	if err == nil {
		r.Created++
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) || errors.Is(err, ErrConflict) {
		r.fail(line, err.Error())
		return nil
	}
	return fmt.Errorf("line %d: %w", line, err)
}
