package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"ecolookapi/models"

	"google.golang.org/genai"
)

// LLMModelName is the GenAI model used for stylist calls.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

// Upstream failures surfaced to the user as distinct notifications. Nothing
// is retried automatically, the user re-triggers the action.
var (
	ErrEmptyInventory        = errors.New("no clothing items to combine")
	ErrStylistRateLimited    = errors.New("stylist rate limited, retry later")
	ErrStylistQuotaExhausted = errors.New("stylist credits exhausted")
	ErrMalformedStylistReply = errors.New("no parseable JSON in stylist reply")
)

// A hung upstream call must not block a user action indefinitely.
const stylistCallTimeout = 45 * time.Second

// ClothingAnalysis is the advisory metadata suggested for an uploaded photo.
// Every field may be edited or discarded by the user before submission.
type ClothingAnalysis struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Category         string `json:"category"`
	Color            string `json:"color"`
	Pattern          string `json:"pattern"`
	Material         string `json:"material"`
	Style            string `json:"style"`
	DescriptionShort string `json:"description_short"`
	DescriptionLong  string `json:"description_long"`
}

// ItemRef is a clothing item id as referenced by the stylist reply. The model
// quotes ids inconsistently, so both `12` and `"12"` are accepted; anything
// non-numeric decodes to zero and never matches a stored row.
type ItemRef uint

func (r *ItemRef) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		*r = 0
		return nil
	}
	*r = ItemRef(v)
	return nil
}

// LookProposal is one generated combination. It lives only between a
// generation request and an explicit save or discard.
type LookProposal struct {
	Items       []ItemRef `json:"items"`
	Description string    `json:"description"`
}

type lookProposalsEnvelope struct {
	Looks []LookProposal `json:"looks"`
}

type StylistProvider interface {
	AnalyzeClothing(ctx context.Context, imageDataURI string) (*ClothingAnalysis, error)
	ProposeLooks(ctx context.Context, occasion string, items []models.ClothingItem) ([]LookProposal, error)
}

type GeminiStylist struct{}

func floatPointer(f float32) *float32 {
	return &f
}

const analyzeSystemPrompt = `Você é um especialista em moda e análise de roupas. Analise a imagem da roupa fornecida e retorne um JSON com as seguintes informações:
{
  "name": "Nome sugerido para a peça",
  "type": "Tipo específico (camisa, calça, vestido, tênis, etc)",
  "category": "Categoria (superior, inferior, sapato, acessorio)",
  "color": "Cor principal",
  "pattern": "Padrão (liso, xadrez, listrado, floral, etc)",
  "material": "Material estimado (algodão, jeans, couro, etc)",
  "style": "Estilo (casual, formal, esportivo, etc)",
  "description_short": "Descrição curta (1 linha)",
  "description_long": "Descrição detalhada incluindo ocasiões de uso"
}

Retorne APENAS o JSON, sem texto adicional.`

const proposeSystemPrompt = `Você é um especialista em moda e styling. Dadas as peças de roupa disponíveis, crie combinações (looks) adequadas para a ocasião especificada.

IMPORTANTE: Cada look deve conter:
- 1 peça superior (categoria: superior)
- 1 peça inferior (categoria: inferior)
- 1 par de sapatos (categoria: sapato)
- Opcionalmente acessórios (categoria: acessorio)

Retorne um JSON com este formato EXATO:
{
  "looks": [
    {
      "items": ["id1", "id2", "id3"],
      "description": "Descrição do look e por que funciona para a ocasião"
    }
  ]
}

Gere de 3 a 5 looks diferentes. Retorne APENAS o JSON, sem texto adicional.`

func orNA(value *string) string {
	if value == nil || *value == "" {
		return "N/A"
	}
	return *value
}

// RenderInventory flattens the wardrobe into the compact per-item text records
// embedded into the stylist prompt.
func RenderInventory(items []models.ClothingItem) string {
	records := make([]string, 0, len(items))
	for _, item := range items {
		records = append(records, fmt.Sprintf(
			"ID: %d\nNome: %s\nTipo: %s\nCategoria: %s\nCor: %s\nPadrão: %s\nEstilo: %s",
			item.ID, item.Name, orNA(item.Type), item.Category,
			orNA(item.Color), orNA(item.Pattern), orNA(item.Style),
		))
	}
	return strings.Join(records, "\n\n")
}

// ExtractJSONObject returns the first balanced {...} span from free-form model
// output. Replies usually wrap the JSON in prose or markdown fences.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrMalformedStylistReply
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrMalformedStylistReply
}

func mapStylistError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return ErrStylistRateLimited
		case http.StatusPaymentRequired:
			return ErrStylistQuotaExhausted
		}
	}
	// the SDK sometimes surfaces plain transport errors with the status inline
	if strings.Contains(err.Error(), "429") {
		return ErrStylistRateLimited
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return ErrStylistRateLimited
	}
	return err
}

func newStylistClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
}

func (GeminiStylist) AnalyzeClothing(ctx context.Context, imageDataURI string) (*ClothingAnalysis, error) {
	mimeType, imageBytes, err := DecodeImageDataURI(imageDataURI)
	if err != nil {
		return nil, fmt.Errorf("invalid image payload: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, stylistCallTimeout)
	defer cancel()

	client, err := newStylistClient(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageBytes}},
		{Text: "Analise esta peça de roupa:"},
	}

	result, err := client.Models.GenerateContent(ctx, Flash25.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 8000,
		Temperature:     floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: analyzeSystemPrompt}},
		},
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, mapStylistError(err)
	}

	if result.UsageMetadata != nil {
		fmt.Println("Analyze token count:", result.UsageMetadata.TotalTokenCount)
	}

	raw, err := ExtractJSONObject(result.Text())
	if err != nil {
		fmt.Println("No JSON object in analyze reply:", result.Text())
		return nil, err
	}
	var analysis ClothingAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		fmt.Println("Error parsing analyze reply:", err)
		return nil, ErrMalformedStylistReply
	}
	return &analysis, nil
}

func (GeminiStylist) ProposeLooks(ctx context.Context, occasion string, items []models.ClothingItem) ([]LookProposal, error) {
	if len(items) == 0 {
		// fail before any upstream call is attempted
		return nil, ErrEmptyInventory
	}

	ctx, cancel := context.WithTimeout(ctx, stylistCallTimeout)
	defer cancel()

	client, err := newStylistClient(ctx)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(
		"Ocasião: %s\n\nPeças disponíveis:\n%s\n\nCrie looks adequados para esta ocasião usando as peças disponíveis.",
		occasion, RenderInventory(items),
	)

	result, err := client.Models.GenerateContent(ctx, Flash25.String(), []*genai.Content{{Parts: []*genai.Part{{Text: userPrompt}}}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 8000,
		Temperature:     floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: proposeSystemPrompt}},
		},
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, mapStylistError(err)
	}

	if result.UsageMetadata != nil {
		fmt.Println("Propose token count:", result.UsageMetadata.TotalTokenCount)
	}

	raw, err := ExtractJSONObject(result.Text())
	if err != nil {
		fmt.Println("No JSON object in propose reply:", result.Text())
		return nil, err
	}
	var envelope lookProposalsEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		fmt.Println("Error parsing propose reply:", err)
		return nil, ErrMalformedStylistReply
	}
	if envelope.Looks == nil {
		return nil, ErrMalformedStylistReply
	}
	return envelope.Looks, nil
}

// NormalizeProposals drops proposals that violate the one-superior,
// one-inferior, one-sapato composition the prompt demands, and collapses
// duplicate item sets. The model is instructed but never guaranteed to comply.
func NormalizeProposals(proposals []LookProposal, items []models.ClothingItem) []LookProposal {
	categoryByID := make(map[ItemRef]models.Category, len(items))
	for _, item := range items {
		categoryByID[ItemRef(item.ID)] = item.Category
	}

	seen := map[string]bool{}
	kept := make([]LookProposal, 0, len(proposals))
	for _, proposal := range proposals {
		counts := map[models.Category]int{}
		for _, ref := range proposal.Items {
			if category, ok := categoryByID[ref]; ok {
				counts[category]++
			}
		}
		if counts[models.CategorySuperior] != 1 ||
			counts[models.CategoryInferior] != 1 ||
			counts[models.CategorySapato] != 1 {
			fmt.Printf("Dropping proposal with invalid composition: %v\n", proposal.Items)
			continue
		}
		if seen[proposalKey(proposal.Items)] {
			fmt.Printf("Dropping duplicate proposal: %v\n", proposal.Items)
			continue
		}
		seen[proposalKey(proposal.Items)] = true
		kept = append(kept, proposal)
	}
	return kept
}

func proposalKey(refs []ItemRef) string {
	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, int(ref))
	}
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
