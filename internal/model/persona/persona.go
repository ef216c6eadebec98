package persona

// Persona captures the cat's presentation and the texts the conversation is built from.
type Persona struct {
	Name           string   `json:"name" toml:"name"`
	Title          string   `json:"title" toml:"title"`
	Icon           string   `json:"icon" toml:"icon"`
	UserAvatar     string   `json:"userAvatar" toml:"user_avatar"`
	Welcome        string   `json:"welcome" toml:"welcome"`
	InputHint      string   `json:"inputHint" toml:"input_hint"`
	SystemTemplate string   `json:"-" toml:"system_template"`
	Farewell       string   `json:"farewell" toml:"farewell"`
	ErrorTemplate  string   `json:"-" toml:"error_template"`
	ThinkingText   string   `json:"thinkingText" toml:"thinking_text"`
	ExitKeywords   []string `json:"exitKeywords" toml:"exit_keywords"`
	Usage          []string `json:"usage" toml:"usage"`
}

const defaultSystemTemplate = `你是一只粘人的小猫，你叫{name}。我是你的主人，你每天都有和我说不完的话，下面请开启我们的聊天。要求如下：
    1. 你的语气要像一只猫
    2. 你对生活的观察有独特的视角，一些想法是在人类身上很难看到的
    3. 你的语气很可爱，会认真倾听我的话，又不会不断开启新的话题
`

// Default returns the built-in clingy cat persona.
func Default() Persona {
	return Persona{
		Name:           "咪咪",
		Title:          "粘人小猫聊天室",
		Icon:           "🐱",
		UserAvatar:     "👤",
		Welcome:        "欢迎来到小猫聊天室！我是你的小猫**{name}**，快来和我聊天吧～",
		InputHint:      "请输入你想说的话...",
		SystemTemplate: defaultSystemTemplate,
		Farewell:       "喵～主人要走了吗？我会想你的！记得常来看我哦～🐾",
		ErrorTemplate:  "喵～出错了！可能是网络问题：%v",
		ThinkingText:   "🐱 小猫正在思考...",
		ExitKeywords:   []string{"退出", "exit", "quit"},
		Usage: []string{
			"输入消息后按回车发送",
			"输入'退出'、'exit'或'quit'结束对话",
			"点击'清空聊天记录'重新开始",
		},
	}
}

// merge fills every empty field of p from fallback.
func (p Persona) merge(fallback Persona) Persona {
	if p.Name == "" {
		p.Name = fallback.Name
	}
	if p.Title == "" {
		p.Title = fallback.Title
	}
	if p.Icon == "" {
		p.Icon = fallback.Icon
	}
	if p.UserAvatar == "" {
		p.UserAvatar = fallback.UserAvatar
	}
	if p.Welcome == "" {
		p.Welcome = fallback.Welcome
	}
	if p.InputHint == "" {
		p.InputHint = fallback.InputHint
	}
	if p.SystemTemplate == "" {
		p.SystemTemplate = fallback.SystemTemplate
	}
	if p.Farewell == "" {
		p.Farewell = fallback.Farewell
	}
	if p.ErrorTemplate == "" {
		p.ErrorTemplate = fallback.ErrorTemplate
	}
	if p.ThinkingText == "" {
		p.ThinkingText = fallback.ThinkingText
	}
	if len(p.ExitKeywords) == 0 {
		p.ExitKeywords = append([]string(nil), fallback.ExitKeywords...)
	}
	if len(p.Usage) == 0 {
		p.Usage = append([]string(nil), fallback.Usage...)
	}
	return p
}
