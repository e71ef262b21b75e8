package brain

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"
)

// geminiDecls converts tool specs to Gemini function declarations.
func geminiDecls(specs []ToolSpec) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		params := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
		}
		for _, p := range s.Params {
			typ := genai.TypeString
			if p.Type == "boolean" {
				typ = genai.TypeBoolean
			}
			params.Properties[p.Name] = &genai.Schema{
				Type:        typ,
				Description: p.Description,
				Enum:        p.Enum,
			}
			if p.Required {
				params.Required = append(params.Required, p.Name)
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  params,
		})
	}
	return out
}

// geminiProvider implements Provider using the Google Gemini API.
type geminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int32
	decls     []*genai.FunctionDeclaration
}

func newGeminiProvider(ctx context.Context, apiKey, model string, maxTokens int64, specs []ToolSpec) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &geminiProvider{
		client:    client,
		model:     model,
		maxTokens: int32(maxTokens),
		decls:     geminiDecls(specs),
	}, nil
}

func (g *geminiProvider) Send(ctx context.Context, systemPrompt string, history []Message) (*Response, error) {
	var contents []*genai.Content
	for _, m := range history {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}

		if len(m.ToolResults) > 0 {
			var parts []*genai.Part
			for _, tr := range m.ToolResults {
				resp := map[string]any{"output": tr.Content}
				if tr.IsError {
					resp["error"] = true
				}
				parts = append(parts, genai.NewPartFromFunctionResponse(tr.ID, resp))
			}
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
			continue
		}

		if len(m.ToolCalls) > 0 {
			var parts []*genai.Part
			if m.Text != "" {
				parts = append(parts, genai.NewPartFromText(m.Text))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Input, &args)
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
			continue
		}

		contents = append(contents, genai.NewContentFromText(m.Text, genai.Role(role)))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		MaxOutputTokens:   g.maxTokens,
		Tools: []*genai.Tool{
			{FunctionDeclarations: g.decls},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, err
	}

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return &Response{Text: resp.Text(), Done: true}, nil
	}

	out := &Response{Text: resp.Text()}
	for _, fc := range calls {
		raw, _ := json.Marshal(fc.Args)
		id := fc.ID
		if id == "" {
			id = fc.Name // Gemini matches responses by function name
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:    id,
			Name:  fc.Name,
			Input: raw,
		})
	}
	return out, nil
}
