// Package insights asks a Gemini model for commentary on a class ledger.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"google.golang.org/genai"

	"kaskelas/internal/core"
)

// ErrDisabled is returned by a nil or unconfigured Advisor.
var ErrDisabled = errors.New("insights disabled: no API key configured")

const (
	maxTransactions   = 100
	systemInstruction = "Anda adalah pakar keuangan kelas yang cerdas dan suportif."
	temperature       = 0.7
)

// Generator produces text for a prompt. The Gemini client implements it;
// tests substitute a fake.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Advisor struct {
	gen Generator
}

func NewAdvisor(gen Generator) *Advisor {
	return &Advisor{gen: gen}
}

// NewGeminiAdvisor returns a nil Advisor when apiKey is empty.
func NewGeminiAdvisor(ctx context.Context, apiKey, model string) (*Advisor, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewAdvisor(&gemini{client: client, model: model}), nil
}

func (a *Advisor) Enabled() bool {
	return a != nil && a.gen != nil
}

// Insights returns markdown commentary on the class's balances and recent
// transactions.
func (a *Advisor) Insights(ctx context.Context, class core.SchoolClass, summary core.Summary, txs []core.Transaction) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	text, err := a.gen.Generate(ctx, BuildPrompt(class, summary, txs))
	if err != nil {
		return "", fmt.Errorf("generate insights: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("generate insights: empty response")
	}
	return text, nil
}

type promptTransaction struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Fund        string `json:"fund"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// BuildPrompt renders the analysis request. Only the newest
// maxTransactions transactions are included.
func BuildPrompt(class core.SchoolClass, summary core.Summary, txs []core.Transaction) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analisis data kas kelas %q yang terbagi menjadi %d kas:\n", class.Name, len(class.Funds))
	for _, f := range class.Funds {
		role := "tabungan"
		if f.IsMain {
			role = "operasional"
		}
		fmt.Fprintf(&b, "- %s (%s): saldo %s\n", f.Name, role, core.FormatRupiah(summary.FundBalances[f.ID]))
	}
	fmt.Fprintf(&b, "Total saldo %s, total pemasukan %s, total pengeluaran %s.\n",
		core.FormatRupiah(summary.TotalBalance),
		core.FormatRupiah(summary.TotalIncome),
		core.FormatRupiah(summary.TotalExpense))

	if rule := class.SplitRule; rule.Enabled {
		names := make([]string, 0, len(rule.TargetFundIDs))
		for _, id := range rule.TargetFundIDs {
			if f, ok := class.FundByID(id); ok {
				names = append(names, f.Name)
			}
		}
		fmt.Fprintf(&b, "Aturan sistem kami: %s otomatis dibagi ke %s.\n",
			rule.TriggerCategory.Label(), strings.Join(names, " dan "))
	}

	b.WriteString(`Berikan:
1. Evaluasi saldo kas operasional vs kas tabungan.
2. Rekomendasi apakah dana tabungan sudah cukup untuk target acara akhir tahun.
3. 3 tips hemat untuk belanja perlengkapan kelas.
4. Pesan semangat untuk bendahara.

Data Transaksi:
`)
	b.Write(transactionsJSON(class, txs))
	b.WriteString("\n\nGunakan Bahasa Indonesia yang gaul tapi sopan. Gunakan Markdown.\n")
	return b.String()
}

func transactionsJSON(class core.SchoolClass, txs []core.Transaction) []byte {
	recent := make([]core.Transaction, len(txs))
	copy(recent, txs)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Date.After(recent[j].Date.Time)
	})
	if len(recent) > maxTransactions {
		recent = recent[:maxTransactions]
	}

	rows := make([]promptTransaction, len(recent))
	for i, t := range recent {
		fund := t.Fund.String()
		if id, ok := t.Fund.FundID(); ok {
			if f, ok := class.FundByID(id); ok {
				fund = f.Name
			}
		}
		rows[i] = promptTransaction{
			Date:        t.Date.String(),
			Type:        string(t.Type),
			Amount:      t.Amount.String(),
			Fund:        fund,
			Category:    t.Category.Label(),
			Description: t.Description,
		}
	}
	// Marshalling plain strings cannot fail.
	out, _ := json.Marshal(rows)
	return out
}

type gemini struct {
	client *genai.Client
	model  string
}

func (g *gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
