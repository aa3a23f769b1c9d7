package command

// HelpText is the static command listing sent for a help trigger.
const HelpText = "📋 **記帳小幫手指令**:\n" +
	"1. 支出 xxx 金額\n" +
	"2. 收入 xxx 金額\n" +
	"3. 固定 xxx 金額\n" +
	"4. 收入 獎金 金額\n" +
	"5. 預算 金額\n" +
	"6. 統計"

// IsHelpTrigger reports whether text asks for the command listing.
func IsHelpTrigger(text string) bool {
	return text == "$help" || text == "說明"
}
