package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type printable struct {
	Total   int
	Columns []string
	Groups  []printGroup
}

type printGroup struct {
	Label string
	Items []map[string]any
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(nil)
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderReport(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	engine, err := NewEngine(brt)
	require.NoError(t, err)

	data := TemplateData{
		Title:       "Aniversariantes",
		GeneratedAt: time.Date(2024, 7, 10, 13, 5, 0, 0, time.UTC),
		Data: printable{
			Total:   3,
			Columns: []string{"name", "birth_date", "is_active"},
			Groups: []printGroup{
				{Label: "Comunidade São José", Items: []map[string]any{{"name": "Ana <Maria>", "birth_date": "1980-07-02", "is_active": true}}},
				{Label: "Sem categoria", Items: []map[string]any{{"name": "Bia", "birth_date": nil, "is_active": false}, {"name": "Caio", "birth_date": "1991-07-30", "is_active": true}}},
			},
		},
	}
	raw, err := engine.Execute("report.html", data)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "<h1>Aniversariantes</h1>")
	assert.Contains(t, body, "Gerado em 10/07/2024 10:05")
	assert.Contains(t, body, "<h2>Comunidade São José (1)</h2>")
	assert.Contains(t, body, "<th>Birth Date</th>")
	assert.Contains(t, body, "<td>02/07/1980</td>")
	assert.Contains(t, body, "Ana &lt;Maria&gt;")
	assert.Contains(t, body, "<td>Não</td>")
}

func TestRenderEmptyReport(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)
	body, err := engine.Execute("report.html", TemplateData{Title: "Avisos", Data: printable{Columns: []string{"title"}}})
	require.NoError(t, err)
	assert.Contains(t, string(body), "Nenhum registro")
}

func TestCell(t *testing.T) {
	assert.Equal(t, "", cell(nil, time.UTC))
	assert.Equal(t, "Missa", cell("Missa", time.UTC))
	assert.Equal(t, "07/03/2024", cell("2024-03-07", time.UTC))
	assert.Equal(t, "42", cell(int64(42), time.UTC))
	assert.Equal(t, "Sim", cell(true, time.UTC))
	assert.Equal(t, "Mass Time", columnLabel("mass_time"))
}
