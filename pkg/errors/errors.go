// Package errors 提供统一错误辅助与对话轮次的错误分类，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
)

// 对话轮次错误分类
var (
	// ErrModelInvocation 模型调用失败：本轮立即结束，写入合成的助手消息，不重试
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrToolExecution 工具执行失败：在分发器内转换为工具结果，本轮继续
	ErrToolExecution = errors.New("tool execution failed")
	// ErrStepLimitExceeded 达到最大步骤数仍未结束，本轮终止
	ErrStepLimitExceeded = errors.New("step limit exceeded")
	// ErrConversationBusy 同一会话已有进行中的轮次
	ErrConversationBusy = errors.New("conversation busy")
)

// StepLimitError 携带触发上限的步数
type StepLimitError struct {
	MaxSteps int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("%s: max steps %d", ErrStepLimitExceeded.Error(), e.MaxSteps)
}

// Is 使 errors.Is(err, ErrStepLimitExceeded) 成立
func (e *StepLimitError) Is(target error) bool {
	return target == ErrStepLimitExceeded
}

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is 转发标准库 errors.Is，避免调用方同时导入两个 errors 包
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 转发标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}
