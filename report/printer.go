package report

import (
	"context"
	"fmt"

	"github.com/paroquia-cms/paroquia-cms/internal/resource"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
	"github.com/paroquia-cms/paroquia-cms/internal/view"
)

const reportTemplate = "report.html"

// Printer renders engine reports for print.
type Printer struct {
	templates *view.Engine
	client    *Client
}

// NewPrinter builds a printer. A nil client disables PDF output.
func NewPrinter(templates *view.Engine, client *Client) *Printer {
	return &Printer{templates: templates, client: client}
}

// HTML renders the report as a standalone printable page.
func (p *Printer) HTML(_ context.Context, rep *resource.Report) ([]byte, error) {
	body, err := p.templates.Execute(reportTemplate, view.TemplateData{
		Title:       rep.Title,
		GeneratedAt: rep.GeneratedAt,
		Data:        rep,
	})
	if err != nil {
		return nil, fmt.Errorf("report: render html: %w", err)
	}
	return body, nil
}

// PDF renders the report page and converts it with Gotenberg.
func (p *Printer) PDF(ctx context.Context, rep *resource.Report) ([]byte, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%w: pdf renderer", shared.ErrUnavailable)
	}
	html, err := p.HTML(ctx, rep)
	if err != nil {
		return nil, err
	}
	pdf, err := p.client.RenderHTML(ctx, html)
	if err != nil {
		return nil, fmt.Errorf("report: render pdf: %w", err)
	}
	return pdf, nil
}

// Ping reports whether the PDF renderer is reachable.
func (p *Printer) Ping(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("%w: pdf renderer", shared.ErrUnavailable)
	}
	return p.client.Ping(ctx)
}
