package dispatch

import "strings"

// CommandMarker starts an explicit command.
const CommandMarker = "/"

// synonym maps a natural-language phrase onto a command. Phrases with
// takesArgs also match when followed by a space and arguments.
type synonym struct {
	phrase    string
	command   string
	takesArgs bool
}

// Longer phrases come first so "my pet" wins over "pet".
var synonyms = []synonym{
	// list
	{"最近紀錄", "/list", true},
	{"最近記錄", "/list", true},
	{"最近記帳", "/list", true},
	{"查詢記錄", "/list", true},
	{"查詢紀錄", "/list", true},
	{"查看記錄", "/list", true},
	{"查看紀錄", "/list", true},
	{"記錄列表", "/list", true},
	{"紀錄列表", "/list", true},
	{"history", "/list", true},
	{"records", "/list", true},
	{"recent", "/list", true},
	{"list", "/list", true},
	{"查詢", "/list", true},
	{"列表", "/list", true},

	// summary
	{"statistics", "/summary", false},
	{"overview", "/summary", false},
	{"summary", "/summary", false},
	{"stats", "/summary", false},
	{"摘要", "/summary", false},
	{"總結", "/summary", false},
	{"總覽", "/summary", false},
	{"統計", "/summary", false},
	{"總計", "/summary", false},

	// delete
	{"delete", "/delete", true},
	{"remove", "/delete", true},
	{"del", "/delete", true},
	{"刪除", "/delete", true},
	{"刪掉", "/delete", true},
	{"移除", "/delete", true},

	// edit
	{"modify", "/edit", true},
	{"edit", "/edit", true},
	{"修改", "/edit", true},
	{"編輯", "/edit", true},

	// pet
	{"tamagotchi", "/pet", false},
	{"my pet", "/pet", false},
	{"寵物狀態", "/pet", false},
	{"我的寵物", "/pet", false},
	{"電子雞", "/pet", false},
	{"我的雞", "/pet", false},
	{"寵物", "/pet", false},
	{"小雞", "/pet", false},
	{"pet", "/pet", false},

	// budget
	{"我的預算", "/budget", false},
	{"預算狀態", "/budget", false},
	{"budget", "/budget", false},
	{"預算", "/budget", false},

	// myid
	{"我的用戶id", "/myid", false},
	{"line id", "/myid", false},
	{"我的id", "/myid", false},
	{"用戶id", "/myid", false},
	{"userid", "/myid", false},
	{"myid", "/myid", false},
	{"id", "/myid", false},

	// help
	{"使用說明", "/help", false},
	{"如何使用", "/help", false},
	{"說明書", "/help", false},
	{"help", "/help", false},
	{"幫助", "/help", false},
	{"說明", "/help", false},
	{"功能", "/help", false},
	{"教學", "/help", false},

	// savings
	{"我的目標", "/savings", false},
	{"查看目標", "/savings", false},
	{"查看儲蓄", "/savings", false},
	{"儲蓄目標", "/savings", false},
	{"savings", "/savings", false},
	{"goals", "/savings", false},
	{"goal", "/savings", false},
	{"儲蓄", "/savings", false},
	{"目標", "/savings", false},

	// group
	{"group", "/group", true},
	{"群組", "/group", true},
	{"分帳", "/group", true},
}

// Normalize rewrites a natural-language command phrase into its explicit
// "/verb args" form. Text that already starts with the marker, or matches
// no phrase, is returned trimmed but otherwise unchanged.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, CommandMarker) {
		return text
	}

	lower := strings.ToLower(text)
	for _, s := range synonyms {
		if lower == s.phrase {
			return s.command
		}
		if s.takesArgs && strings.HasPrefix(lower, s.phrase+" ") {
			rest := strings.TrimSpace(text[len(s.phrase):])
			return s.command + " " + rest
		}
	}
	return text
}
