package toolview

import "strconv"

// ShellResult shell 工具的执行结果。
type ShellResult struct {
	Cmd      string `json:"cmd"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Message  string `json:"message,omitempty"`
}

// ParseShell 解析 shell 工具输出:
//
//	<cmd>ls</cmd>
//	<exit_code>0</exit_code>
//	<stdout>a.txt</stdout>
//	<stderr></stderr>
//	<message>...</message>   (可选)
//
// cmd 与 exit_code 缺一不可, 否则视为解析失败。
func ParseShell(raw string) (*ShellResult, bool) {
	cmd, okCmd := firstTag(raw, "cmd")
	codeStr, okCode := firstTag(raw, "exit_code")
	if !okCmd || !okCode {
		return nil, false
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return nil, false
	}

	res := &ShellResult{Cmd: cmd, ExitCode: code}
	res.Stdout, _ = firstTag(raw, "stdout")
	res.Stderr, _ = firstTag(raw, "stderr")
	res.Message, _ = firstTag(raw, "message")
	return res, true
}
