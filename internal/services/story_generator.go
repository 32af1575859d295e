// internal/services/story_generator.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/drawatale/drawatale-backend/internal/services")

const (
	storyPageCount   = 3
	templateArtFocus = "character design and storytelling"
	fillerTitle      = "A Magical Adventure"
	fillerArtFocus   = "storytelling through art"
	storySchemaName  = "story_draft"
)

// TextCompleter is the part of LLMService the story generator needs.
type TextCompleter interface {
	IsReady() bool
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// GenerationOptions tune external generation requests.
type GenerationOptions struct {
	MaxTokens   int
	Temperature float64
	// Timeout bounds one external call. Zero leaves it to the provider.
	Timeout time.Duration
}

// StoryGenerator turns a prompt into a three-page story. It asks the
// configured provider first and falls back to the template builder on any
// failure, so GenerateStory always returns a draft.
type StoryGenerator struct {
	tables    *config.Heuristics
	completer TextCompleter
	opts      GenerationOptions
	metrics   *utils.AppMetrics
	schema    *jsonschema.Schema
	schemaDoc string
}

// NewStoryGenerator builds a generator. completer and metrics may be nil.
func NewStoryGenerator(tables *config.Heuristics, completer TextCompleter, opts GenerationOptions, metrics *utils.AppMetrics) *StoryGenerator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.8
	}
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := r.Reflect(&models.StoryDraft{})
	doc, _ := json.Marshal(schema)

	return &StoryGenerator{
		tables:    tables,
		completer: completer,
		opts:      opts,
		metrics:   metrics,
		schema:    schema,
		schemaDoc: string(doc),
	}
}

// ExtractThemes returns every theme with a keyword found in prompt, in
// table order, or the default themes when none match.
func (g *StoryGenerator) ExtractThemes(prompt string) []string {
	lower := strings.ToLower(prompt)
	var themes []string
	for _, group := range g.tables.Themes {
		for _, kw := range group.Keywords {
			if strings.Contains(lower, kw) {
				themes = append(themes, group.Name)
				break
			}
		}
	}
	if len(themes) == 0 {
		return append([]string(nil), g.tables.DefaultThemes...)
	}
	return themes
}

// SelectCharacter picks the main character by theme priority, then by
// prompt keyword, then the default.
func (g *StoryGenerator) SelectCharacter(prompt string, themes []string) string {
	if v, ok := firstByTheme(g.tables.Characters, themes); ok {
		return v
	}
	lower := strings.ToLower(prompt)
	for _, fb := range g.tables.CharacterFallbacks {
		if strings.Contains(lower, fb.Keyword) {
			return fb.Value
		}
	}
	return g.tables.DefaultCharacter
}

// SelectSetting picks the setting by theme priority or the default.
func (g *StoryGenerator) SelectSetting(themes []string) string {
	if v, ok := firstByTheme(g.tables.Settings, themes); ok {
		return v
	}
	return g.tables.DefaultSetting
}

func firstByTheme(choices []config.ThemeChoice, themes []string) (string, bool) {
	for _, c := range choices {
		for _, t := range themes {
			if c.Theme == t {
				return c.Value, true
			}
		}
	}
	return "", false
}

// BuildTemplateStory composes the deterministic three-page story.
func (g *StoryGenerator) BuildTemplateStory(prompt string) *models.StoryDraft {
	themes := g.ExtractThemes(prompt)
	character := g.SelectCharacter(prompt, themes)
	setting := g.SelectSetting(themes)

	return &models.StoryDraft{
		Title: fmt.Sprintf("The Amazing Adventure of %s", character),
		Pages: []models.StoryPage{
			{
				Content:       fmt.Sprintf("Once upon a time, there was a brave %s who lived in %s. Every day, they dreamed of going on a magical adventure and discovering something wonderful!", character, setting),
				DrawingPrompt: fmt.Sprintf("Draw %s in their home at %s, getting ready for an adventure", character, setting),
			},
			{
				Content:       fmt.Sprintf("One special day, %s discovered something amazing! They met new friends, learned exciting things, and showed incredible creativity and kindness.", character),
				DrawingPrompt: fmt.Sprintf("Draw %s on their amazing discovery - make it colorful and magical!", character),
			},
			{
				Content:       fmt.Sprintf("At the end of their adventure, %s returned home feeling proud and happy. They had learned that with creativity and courage, any dream can come true!", character),
				DrawingPrompt: fmt.Sprintf("Draw %s celebrating their successful adventure with all their new friends", character),
			},
		},
		Themes:        themes,
		ArtFocus:      templateArtFocus,
		GeneratedWith: models.GeneratedWithTemplate,
	}
}

// SystemPrompt is the instruction sent with every external request.
func (g *StoryGenerator) SystemPrompt(age int, interests []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a creative children's story writer specializing in neuro-inclusive, educational stories for children aged %d.\n\n", age)
	b.WriteString("Guidelines:\n")
	b.WriteString("- Create engaging, positive stories with clear structure\n")
	fmt.Fprintf(&b, "- Use simple language appropriate for age %d\n", age)
	b.WriteString("- Include educational elements about art, creativity, or problem-solving\n")
	b.WriteString("- Ensure stories are inclusive and celebrate diversity\n")
	b.WriteString("- Make each story 3 pages long for illustration\n")
	b.WriteString("- Each page should have a clear drawing prompt\n")
	if len(interests) > 0 {
		fmt.Fprintf(&b, "- The child is particularly interested in: %s.\n", strings.Join(interests, ", "))
	}
	b.WriteString("- Focus on adventure, friendship, and creativity\n")
	b.WriteString("- Avoid scary or negative themes\n")
	b.WriteString("- Make the story interactive and drawing-focused\n\n")
	b.WriteString("Output format: Return a JSON object with:\n")
	b.WriteString("- \"title\": Story title\n")
	b.WriteString("- \"pages\": Array of 3 pages, each with \"content\" and \"drawing_prompt\"\n")
	b.WriteString("- \"themes\": Array of main themes/concepts\n")
	b.WriteString("- \"art_focus\": The main artistic skill this story teaches\n\n")
	b.WriteString("JSON schema:\n")
	b.WriteString(g.schemaDoc)
	return b.String()
}

// UserPrompt wraps the child's request.
func (g *StoryGenerator) UserPrompt(prompt string) string {
	return fmt.Sprintf("Create a 3-page illustrated children's story about: %s\n\n"+
		"The story should be designed for a child to draw illustrations for each page. Make it magical, educational, and fun!", prompt)
}

// GenerateStory never fails. Transport errors, unusable replies and a
// missing provider all produce the template story.
func (g *StoryGenerator) GenerateStory(ctx context.Context, prompt string, age int, interests []string) *models.StoryDraft {
	logger := utils.GetLogger()
	ctx, span := tracer.Start(ctx, "story.generate", trace.WithAttributes(
		attribute.Int("story.child_age", age),
		attribute.Int("story.interests", len(interests)),
	))
	defer span.End()

	if g.completer == nil || !g.completer.IsReady() {
		g.record(ctx, models.GeneratedWithTemplate, false)
		return g.BuildTemplateStory(prompt)
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		Prompt:       g.UserPrompt(prompt),
		SystemPrompt: g.SystemPrompt(age, interests),
		MaxTokens:    g.opts.MaxTokens,
		Temperature:  float32(g.opts.Temperature),
		JSONMode:     true,
		Schema:       g.schema,
		SchemaName:   storySchemaName,
	})
	if err != nil {
		logger.Warn("story generation failed, using template", map[string]interface{}{
			"error": err.Error(),
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		g.record(ctx, models.GeneratedWithTemplate, true)
		return g.BuildTemplateStory(prompt)
	}

	draft, parseable := decodeStoryReply(resp.Text)
	switch {
	case draft != nil:
	case parseable:
		logger.Warn("story reply has the wrong shape, using template", map[string]interface{}{
			"provider": resp.ProviderName,
		})
		span.SetStatus(codes.Error, "malformed story payload")
		g.record(ctx, models.GeneratedWithTemplate, true)
		return g.BuildTemplateStory(prompt)
	default:
		draft = parseStoryResponse(resp.Text)
	}
	draft.GeneratedWith = models.GeneratedWithAI
	draft.Provider = resp.ProviderName
	g.record(ctx, models.GeneratedWithAI, false)
	return draft
}

func (g *StoryGenerator) record(ctx context.Context, source string, fellBack bool) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("story.source", source),
		attribute.Bool("story.fallback", fellBack),
	)
	if g.metrics != nil {
		g.metrics.RecordStoryGeneration(source, fellBack)
	}
}

// decodeStoryReply decides from the whole reply, or its fenced block,
// whether the provider answered in JSON. A parseable reply yields a draft
// only when it is an object with a title and exactly three pages.
func decodeStoryReply(text string) (draft *models.StoryDraft, parseable bool) {
	body := stripCodeFences(text)
	raw := []byte(body)
	if !json.Valid(raw) {
		raw = []byte(normalizeJSONStructure(body))
		if !json.Valid(raw) {
			return nil, false
		}
	}

	var d models.StoryDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, true
	}
	if strings.TrimSpace(d.Title) == "" || len(d.Pages) != storyPageCount {
		return nil, true
	}
	if d.Themes == nil {
		d.Themes = []string{}
	}
	return &d, true
}

var titleNoise = regexp.MustCompile(`[#*"'{}:]`)

// parseStoryResponse salvages a title from free text and pairs it with a
// fixed filler story.
func parseStoryResponse(content string) *models.StoryDraft {
	title := fillerTitle
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.Contains(strings.ToLower(line), "title") || strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(titleNoise.ReplaceAllString(line, "")); t != "" {
				title = t
			}
			break
		}
	}

	return &models.StoryDraft{
		Title: title,
		Pages: []models.StoryPage{
			{
				Content:       "Once upon a time, there was a wonderful adventure waiting to begin...",
				DrawingPrompt: "Draw the main character of your story",
			},
			{
				Content:       "The adventure continued with exciting discoveries and new friends...",
				DrawingPrompt: "Draw the most exciting part of the adventure",
			},
			{
				Content:       "And they all lived happily ever after, having learned something wonderful!",
				DrawingPrompt: "Draw the happy ending of your story",
			},
		},
		Themes:   []string{"adventure", "creativity", "friendship"},
		ArtFocus: fillerArtFocus,
	}
}
