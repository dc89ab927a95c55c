// Package report renders the printable chantier sheet.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"chantier-tracker/internal/models"
	"chantier-tracker/internal/progression"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var (
	titleStyle  = props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}
	headStyle   = props.Text{Size: 11, Style: fontstyle.Bold, Top: 2}
	labelStyle  = props.Text{Size: 9, Style: fontstyle.Bold}
	valueStyle  = props.Text{Size: 9}
	cellStyle   = props.Text{Size: 8}
	cellHead    = props.Text{Size: 8, Style: fontstyle.Bold}
	footerStyle = props.Text{Size: 7, Align: align.Right}
)

// ChantierPDF lays out the chantier header and its interventions. The
// chantier is expected with Client, Responsable and Interventions loaded.
func ChantierPDF(c models.Chantier, now time.Time) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(12).
		WithRightMargin(12).
		WithTopMargin(12).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12, text.NewCol(12, c.Title, titleStyle))
	m.AddRow(4, line.NewCol(12))

	field := func(label, value string) core.Row {
		return m.AddRow(6,
			text.NewCol(4, label, labelStyle),
			text.NewCol(8, orDash(value), valueStyle),
		)
	}
	field("Client", clientName(c.Client))
	field("Adresse", c.Address)
	field("Responsable", userName(c.Responsable))
	field("Statut", fmt.Sprintf("%s (%s)", c.Status, progression.DisplayStatus(c, now)))
	field("Priorité", string(c.Priority))
	// an explicit override may differ from the intervention ratio until the next recompute
	avancement := strconv.Itoa(c.Progression) + " %"
	if derived := progression.Compute(c.Status, progression.Statuses(c.Interventions)); derived != c.Progression {
		avancement += fmt.Sprintf(" (interventions : %d %%)", derived)
	}
	field("Avancement", avancement)
	field("Budget", money(c.Budget))
	field("Début", date(c.StartDate))
	field("Fin", date(c.EndDate))
	if c.Description != "" {
		m.AddRow(14, text.NewCol(12, c.Description, valueStyle))
	}

	m.AddRow(10, text.NewCol(12, fmt.Sprintf("Interventions (%d)", len(c.Interventions)), headStyle))
	m.AddRow(6,
		text.NewCol(2, "Date", cellHead),
		text.NewCol(4, "Intitulé", cellHead),
		text.NewCol(2, "Technicien", cellHead),
		text.NewCol(2, "Statut", cellHead),
		text.NewCol(1, "Durée", cellHead),
		text.NewCol(1, "Prix", cellHead),
	)

	var hours, total float64
	for _, iv := range c.Interventions {
		hours += iv.Duration
		total += iv.Price
		m.AddRow(5,
			text.NewCol(2, date(iv.Date), cellStyle),
			text.NewCol(4, iv.Title, cellStyle),
			text.NewCol(2, orDash(userName(iv.Technicien)), cellStyle),
			text.NewCol(2, string(iv.Status), cellStyle),
			text.NewCol(1, strconv.FormatFloat(iv.Duration, 'f', 1, 64)+" h", cellStyle),
			text.NewCol(1, money(iv.Price), cellStyle),
		)
	}
	if len(c.Interventions) == 0 {
		m.AddRow(6, text.NewCol(12, "Aucune intervention", cellStyle))
	}

	m.AddRow(4, line.NewCol(12))
	m.AddRow(6,
		text.NewCol(8, "Total", labelStyle),
		text.NewCol(2, strconv.FormatFloat(hours, 'f', 1, 64)+" h", labelStyle),
		text.NewCol(2, money(total), labelStyle),
	)
	m.AddRow(8, text.NewCol(12, "Édité le "+now.Format("02/01/2006 15:04"), footerStyle))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating chantier report: %w", err)
	}
	return doc.GetBytes(), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02/01/2006")
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " EUR"
}

func clientName(c *models.Client) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func userName(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.FullName()
}
