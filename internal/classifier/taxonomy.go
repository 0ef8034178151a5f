package classifier

import (
	"fmt"
	"strings"

	"PaperDigest/internal/domain"
)

// taxonomyOption is one id in a classification dimension.
type taxonomyOption struct {
	ID          string
	Description string
}

// The reference taxonomy embedded in every classification prompt. Three
// fixed dimensions; the model may propose free-form ids when none fit.
var taxonomyDimensions = []string{"primary_area", "secondary_focus", "application_domain"}

var taxonomyEN = map[string][]taxonomyOption{
	"primary_area": {
		{"text_models", "Text generation/understanding models, e.g. language models, translation"},
		{"multimodal_models", "Models handling text + multimodal input/output"},
		{"audio_models", "Speech and audio understanding or generation models"},
		{"video_models", "Video understanding, generation or editing models"},
		{"vla_models", "Vision-language-action multimodal agent/robot models"},
		{"diffusion_models", "Diffusion, flow-matching and other image generation models"},
	},
	"secondary_focus": {
		{"dialogue_systems", "Dialogue, customer service, assistant scenarios"},
		{"long_context", "Long text / long context processing"},
		{"reasoning", "Reasoning, chain-of-thought, mathematical abilities"},
		{"model_compression", "Distillation, quantization, pruning techniques"},
		{"model_architecture", "Novel model architecture design or frameworks"},
		{"alignment", "Value alignment, safety, bias governance"},
		{"training_optimization", "Training strategies, efficiency, data recipes"},
		{"tech_reports", "Official technical reports or roadmaps"},
	},
	"application_domain": {
		{"medical_ai", "Medical, pharmaceutical, life science applications"},
		{"education_ai", "Education, teaching, examination scenarios"},
		{"code_generation", "Programming and software engineering"},
		{"legal_ai", "Legal, compliance, judicial scenarios"},
		{"financial_ai", "Finance, business analytics"},
		{"general_purpose", "General purpose or not yet categorised"},
	},
}

var taxonomyZH = map[string][]taxonomyOption{
	"primary_area": {
		{"text_models", "纯文本生成/理解类模型，例如语言模型、翻译模型"},
		{"multimodal_models", "处理文本+多模态输入输出的模型"},
		{"audio_models", "语音、音频理解或生成模型"},
		{"video_models", "视频理解、生成或编辑模型"},
		{"vla_models", "视觉-语言-动作等多模态智能体/机器人模型"},
		{"diffusion_models", "扩散、流匹配等图像生成模型"},
	},
	"secondary_focus": {
		{"dialogue_systems", "对话、客服、助手类场景"},
		{"long_context", "长文本/长上下文处理能力"},
		{"reasoning", "推理、逻辑链、数学等能力"},
		{"model_compression", "蒸馏、量化、剪枝等压缩技术"},
		{"model_architecture", "模型结构设计或新框架"},
		{"alignment", "价值观对齐、安全、偏置治理"},
		{"training_optimization", "训练策略、效率、数据配方"},
		{"tech_reports", "官方技术报告或路线图"},
	},
	"application_domain": {
		{"medical_ai", "医疗、药物、生命科学应用"},
		{"education_ai", "教育、教学、考试场景"},
		{"code_generation", "编程、软件工程相关"},
		{"legal_ai", "法律、合规、司法场景"},
		{"financial_ai", "金融、商业分析场景"},
		{"general_purpose", "通用用途或暂未细分"},
	},
}

func systemPrompt(language string) string {
	tongue := "English"
	if language == "zh" {
		tongue = "Chinese"
	}
	return "You are an expert research analyst. " +
		"Classify each arXiv paper using the reference taxonomy " +
		"(you may also suggest new labels when needed) and summarise it in " + tongue + "."
}

const repairHint = "\n\nWARNING: The previous response failed to parse. " +
	"Please return ONLY a strict JSON object without Markdown code blocks or extra text."

func taxonomy(language string) map[string][]taxonomyOption {
	if language == "zh" {
		return taxonomyZH
	}
	return taxonomyEN
}

func formatTaxonomyReference(language string) string {
	tax := taxonomy(language)
	var b strings.Builder
	for _, dimension := range taxonomyDimensions {
		b.WriteString(dimension)
		b.WriteString(":\n")
		for _, opt := range tax[dimension] {
			fmt.Fprintf(&b, "  - %s: %s\n", opt.ID, opt.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatInterestTagReference(tags []domain.InterestTag, language string) string {
	if len(tags) == 0 {
		return ""
	}

	header := "Interest tags (only include a tag ID in the `interest_tags` JSON array " +
		"when the paper strongly matches its description/keywords; otherwise leave empty):"
	kwLabel := "Keywords: "
	if language == "zh" {
		header = "兴趣标签（仅在论文与描述/关键词高度匹配时，才在 JSON 的 `interest_tags` 中返回对应标签 ID；否则请留空）："
		kwLabel = "关键词: "
	}

	lines := []string{header}
	for _, tag := range tags {
		if tag.Label == "" {
			continue
		}
		line := "  - " + tag.Label
		if tag.Description != "" {
			line += " - " + tag.Description
		}
		if len(tag.Keywords) > 0 {
			line += " | " + kwLabel + strings.Join(tag.Keywords, ", ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func responseInstructions(withInterestTags bool) string {
	instructions := "Return a compact JSON object with keys: primary_area, secondary_focus, " +
		"application_domain, and tldr. Prefer labels from the reference list, " +
		"but you may propose new labels if they better describe the paper."
	if withInterestTags {
		instructions += " Interest tags are optional hints for downstream delivery. " +
			"Only include a label ID in the `interest_tags` array when the paper strongly " +
			"matches its description or keywords; otherwise return an empty array."
	}
	return instructions
}

func buildUserPrompt(paper domain.Paper, tags []domain.InterestTag, language string) string {
	taxonomyBlock := formatTaxonomyReference(language)
	interestBlock := formatInterestTagReference(tags, language)
	instructions := responseInstructions(interestBlock != "")

	var b strings.Builder
	fmt.Fprintf(&b, "Paper metadata:\n- Title: %s\n- arXiv category: %s\n- Published at: %s\n\n",
		strings.TrimSpace(paper.Title), paper.PrimaryCategory, paper.Published.Format("2006-01-02"))
	fmt.Fprintf(&b, "Abstract:\n%s\n\n", strings.TrimSpace(paper.Summary))
	fmt.Fprintf(&b, "Reference taxonomy (IDs with brief descriptions):\n%s", taxonomyBlock)
	if interestBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(interestBlock)
	}
	b.WriteString("\n\n")
	b.WriteString(instructions)
	return b.String()
}
