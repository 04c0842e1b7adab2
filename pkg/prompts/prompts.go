package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jwebster45206/adventure-engine/pkg/state"
)

const (
	// HistoryWindow is how many recent turns go into init and turn prompts.
	HistoryWindow = 3
	// OracleWindow is the shorter context the oracle sees.
	OracleWindow = 2

	StoryExcerptLimit  = 300
	OracleExcerptLimit = 200

	// AspectRatio is passed to the image endpoint with every request.
	AspectRatio = "16:9"

	// UnspecifiedCustomization fills any world seed the player left blank.
	UnspecifiedCustomization = "не указано — на усмотрение рассказчика"

	// OracleFallback is shown when the oracle returns nothing.
	OracleFallback = "Оракул молчит..."

	imageStyleSuffix = "Masterpiece, high detail."
)

// OracleSystemPrompt sets the oracle persona.
const OracleSystemPrompt = "Ты — мудрый Оракул. Отвечай кратко на русском."

// NarratorSystemPrompt is sent with init and turn requests.
const NarratorSystemPrompt = `Ты — рассказчик бесконечного текстового приключения. Пиши живо и кратко, на русском языке.
Отвечай только JSON-документом, строго соответствующим схеме. Не добавляй пояснений и разметки.`

// turnRules describes every field of a turn; shared by init and continuation.
const turnRules = `ПРАВИЛА ХОДА:
- locationName: очень краткое название места (2-3 слова)
- locationType: "threat" (опасность или бой), "poi" (интересное место) или "neutral"
- threatLevel: уровень угрозы, целое число от 0 до 10
- discoveryTag: необязательная метка находки
- story: текст события (на русском)
- choices: 3 варианта действий (на русском)
- inventory: список предметов героя
- currentQuest: текущая цель
- imagePrompt: описание сцены на английском
- combatInfo: только если locationType = "threat": enemyName, enemyHp, enemyMaxHp (enemyHp не больше enemyMaxHp), lastActionLog`

const initTemplate = `Начни игру в жанре "%s". Создай первого героя, его характеристики и первый ход.

НАСТРОЙКИ МИРА:
- Мир: %s
- Герой: %s
- Оружие: %s
- Злодей: %s

ЗАДАЧА: Сгенерируй JSON с полями:
- characterDescription: краткое описание героя (на русском)
- stats: характеристики героя (hp, maxHp, str, agi, int, level, exp); hp равно maxHp, maxHp не меньше 1
- turn: первый ход

` + turnRules

const turnTemplate = `Продолжи приключение в жанре "%s".
Персонаж: %s.
Характеристики: %s.
%s
Предыдущие события:
%s

Игрок выбрал: "%s".

ЗАДАЧА: Сгенерируй JSON с полями:
- turn: следующий ход
- updatedStats: характеристики после хода (hp от 0 до maxHp; hp = 0 означает гибель героя)

` + turnRules

const combatDirective = `Идет бой. Рассчитай исход действия игрока с учетом характеристик и обнови combatInfo.
`

const oracleTemplate = "Контекст:\n%s\n\nВопрос к Оракулу: %s"

// Truncate cuts s to at most limit runes, marking the cut with "...".
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// ImagePrompt decorates a visual descriptor with the house style.
func ImagePrompt(descriptor string) string {
	descriptor = strings.TrimRight(strings.TrimSpace(descriptor), ".")
	return fmt.Sprintf("%s. %s", descriptor, imageStyleSuffix)
}

// FormatStats renders a stat line the model can read back.
func FormatStats(s state.CharacterStats) string {
	return fmt.Sprintf("HP %d/%d, СИЛ %d, ЛОВ %d, ИНТ %d, уровень %d, опыт %d",
		s.HP, s.MaxHP, s.Str, s.Agi, s.Int, s.Level, s.Exp)
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return UnspecifiedCustomization
	}
	return strings.TrimSpace(s)
}
