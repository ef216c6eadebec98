package emotion

import (
	"strings"
)

// Label 表示小猫回复的心情标签，用于挑选头像。
type Label string

const (
	Neutral      Label = "neutral"
	Happy        Label = "happy"
	Playful      Label = "playful"
	Affectionate Label = "affectionate"
	Sad          Label = "sad"
	Sleepy       Label = "sleepy"
	Curious      Label = "curious"
)

// Decision 给出心情识别结果与得分。
type Decision struct {
	Mood  Label
	Score int
}

var keywordBuckets = map[Label][]string{
	Happy: {
		"开心", "高兴", "快乐", "太好了", "太棒了", "真棒", "哈哈", "嘻嘻", "好耶", "喜欢",
		"happy", "great", "yay", "love",
	},
	Playful: {
		"玩", "毛线球", "逗猫棒", "扑", "追", "跳", "抓", "蹦", "捉迷藏", "小鱼干", "罐头",
		"play", "chase", "pounce",
	},
	Affectionate: {
		"蹭", "抱抱", "贴贴", "想你", "陪着", "陪你", "呼噜", "舔", "窝在", "主人最好",
		"摸摸", "爱你", "purr", "cuddle",
	},
	Sad: {
		"难过", "伤心", "失落", "委屈", "哭", "寂寞", "孤单", "想哭", "呜呜", "可怜",
		"sad", "lonely", "cry",
	},
	Sleepy: {
		"困", "睡", "打盹", "哈欠", "晒太阳", "懒洋洋", "眯眼", "梦", "sleep", "nap", "zzz",
	},
	Curious: {
		"为什么", "好奇", "是什么", "怎么", "什么呀", "咦", "嗯？", "探索", "闻一闻",
		"why", "what", "curious",
	},
}

// 同分时的优先顺序，保证结果稳定。
var priority = []Label{Affectionate, Happy, Playful, Sad, Sleepy, Curious}

// Analyze 根据小猫的回复推断心情。
func Analyze(reply string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(reply))
	if normalized == "" {
		return Decision{Mood: Neutral}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label] += 3
			}
		}
	}

	// 感叹号让语气更雀跃，问号让小猫更好奇。
	exclamations := strings.Count(reply, "!") + strings.Count(reply, "！")
	if exclamations > 0 {
		scores[Happy] += exclamations
	}
	questions := strings.Count(reply, "?") + strings.Count(reply, "？")
	if questions > 0 {
		scores[Curious] += questions
	}

	best := Neutral
	bestScore := 0
	for _, label := range priority {
		if s := scores[label]; s > bestScore {
			best = label
			bestScore = s
		}
	}

	return Decision{Mood: best, Score: bestScore}
}

// Avatar 返回心情对应的小猫头像。
func Avatar(label Label) string {
	switch label {
	case Happy:
		return "😸"
	case Playful:
		return "😼"
	case Affectionate:
		return "😻"
	case Sad:
		return "😿"
	case Sleepy:
		return "😽"
	case Curious:
		return "🙀"
	default:
		return "🐱"
	}
}
