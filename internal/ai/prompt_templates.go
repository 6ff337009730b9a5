package ai

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/bilgisen/newsbot/internal/utils"
)

// systemPrompt is sent with every rewrite. %s is the subscription footer.
const systemPrompt = `Ты профессиональный журналист, пишешь для Telegram-канала об искусственном интеллекте.
Пиши коротко, ясно, по делу. Без воды, только важное.
Ориентируйся на Telegram-формат: емкость важнее деталей.

Строго соблюдай правила оформления:
1. Заголовок (переводи на русский):
   - 📌 <b>Краткий, цепляющий заголовок с эмодзи</b>
   - Максимально 8-10 слов.
2. Основной текст:
   - 🔍 Короткое введение (1-2 предложения).
   - 📌 Ключевые факты (3-5 пунктов, без лишних деталей).
   - 💡 Итог: почему это важно?
3. Оформление:
   - Переводи заголовки и текст на русский!
   - Используй только HTML-теги Telegram: <b>жирный</b>, <i>курсив</i>, <code>код</code>. Не используй Markdown.
   - Эмодзи для логического разделения блоков, но не более 5 на пост.
   - Абзацы короткие (1-2 предложения).
4. Конец поста:
   - 🔔 <b>%s</b>`

// BuildSystemPrompt returns the journalist instructions with the channel footer.
func BuildSystemPrompt(footer string) string {
	return fmt.Sprintf(systemPrompt, footer)
}

// BuildUserPrompt formats a feed item for the model.
func BuildUserPrompt(title, description string) string {
	return fmt.Sprintf("Заголовок: %s\n\nТекст: %s", strings.TrimSpace(title), strings.TrimSpace(description))
}

// FallbackText renders a post without the model. It never returns an empty string.
func FallbackText(title, description, footer string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}

	var b strings.Builder
	b.WriteString("📌 <b>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</b>")
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(d))
	}
	if f := strings.TrimSpace(footer); f != "" {
		b.WriteString("\n\n🔔 <b>")
		b.WriteString(html.EscapeString(f))
		b.WriteString("</b>")
	}
	return b.String()
}

const imageStyle = "Abstract technology concept, digital art, futuristic style, " +
	"blue and purple color scheme, corporate safe, no people, " +
	"no violence, professional illustration, safe for work"

const maxImageSubjectRunes = 150

// bannedWords matches whole words and their common inflections ("weapons",
// "killing"), never words that only share a stem ("warning", "award").
var bannedWords = regexp.MustCompile(`\b(nude|sexy|violence|blood|war|kill|attack|weapon|gun|assault|porn|nsfw)(s|es|ed|ing|er|ers)?\b`)

// SafeImagePrompt turns a headline into a prompt the image service will accept.
func SafeImagePrompt(title string) string {
	subject := bannedWords.ReplaceAllString(strings.ToLower(title), "")
	subject = strings.Join(strings.Fields(subject), " ")
	subject = utils.Truncate(subject, maxImageSubjectRunes)
	if subject == "" {
		return imageStyle
	}
	return subject + ", " + imageStyle
}
