package characters

import (
	"fmt"
	"strings"
)

const portraitPromptHeader = "Create a Dungeons & Dragons style illustrated character avatar portrait. " +
	"Framed like a chat profile picture. Aspect ratio 1:1 (square). High quality fantasy art. " +
	"No text, no watermark, no signature.\n\n"

// composeTraits 将选项与补充描述拼接为特征串,作为提示词的原料。
func composeTraits(opts GenerationOptions, details string) string {
	parts := make([]string, 0, 7)
	if v := strings.TrimSpace(opts.Race); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(opts.Class); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(opts.Mood); v != "" {
		parts = append(parts, v+" expression")
	}
	if v := strings.TrimSpace(opts.Background); v != "" {
		parts = append(parts, v+" background")
	}
	if v := strings.TrimSpace(opts.Gender); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(opts.Style); v != "" {
		parts = append(parts, "Style: "+v)
	}
	if v := strings.TrimSpace(details); v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, ", ")
}

// buildPortraitPrompt 按固定模板从特征串构建首次生成的图像提示词,
// 角色名只用于整体气质,不允许写入画面。
func buildPortraitPrompt(traits, name string) string {
	prompt := portraitPromptHeader + fmt.Sprintf("Character traits: %s\n", strings.TrimSpace(traits))
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		prompt += fmt.Sprintf("\nCharacter name (for vibe only; do not write text): %s\n", trimmed)
	}
	return prompt
}

// buildRegenPrompt 基于角色当前累计的特征与描述构建再生成提示词。
func buildRegenPrompt(traits, details string) string {
	prompt := portraitPromptHeader + fmt.Sprintf("Character traits: %s\n", strings.TrimSpace(traits))
	if trimmed := strings.TrimSpace(details); trimmed != "" {
		prompt += fmt.Sprintf("\nAdditional character details: %s\n", trimmed)
	}
	return prompt
}

// buildQuotePrompt 构建用于生成角色台词的文本提示词。
func buildQuotePrompt(ch *Character) string {
	opts := ch.OptionsData()
	return "Write ONE short quote (max 25 words) that this fantasy RPG character would say. " +
		"First-person voice. No quote marks. No emojis. No modern references. " +
		"Do not include the character's name unless it would naturally be spoken.\n\n" +
		fmt.Sprintf("Name: %s\n", ch.Name) +
		fmt.Sprintf("Race: %s\nClass: %s\nMood: %s\nBackground: %s\nStyle: %s\n",
			opts.Race, opts.Class, opts.Mood, opts.Background, opts.Style) +
		fmt.Sprintf("Details: %s\nTraits: %s\n", ch.Details, ch.Traits)
}
