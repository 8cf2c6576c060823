package agent

// State Agent 在一轮中的状态
type State string

const (
	StateThinking State = "THINKING"
	StateActing   State = "ACTING"
	StateFinished State = "FINISHED"
	StateError    State = "ERROR" // 终止的一种，单独区分便于观测
)

// IsTerminal FINISHED 与 ERROR 均结束循环
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateError
}

func (s State) String() string {
	return string(s)
}
