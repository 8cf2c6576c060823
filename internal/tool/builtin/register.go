package builtin

import (
	"context"

	"love-agent/internal/agent/tools"
	"love-agent/pkg/log"
)

// Options 内置工具装配选项；Email / ImageSearch 为 nil 时不注册对应工具
type Options struct {
	Email         *EmailConfig
	EmailSender   SendFunc
	ImageSearch   *ImageSearchConfig
	TerminateTool string
	Logger        *log.Logger
}

// RegisterBuiltin 将内置工具注册到 Registry；结束工具总是注册
func RegisterBuiltin(ctx context.Context, reg *tools.Registry, opts Options) error {
	if opts.Email != nil {
		if err := reg.Register(ctx, NewEmailTool(*opts.Email, opts.EmailSender, opts.Logger)); err != nil {
			return err
		}
	}
	if opts.ImageSearch != nil {
		if err := reg.Register(ctx, NewImageSearchTool(*opts.ImageSearch)); err != nil {
			return err
		}
	}
	return reg.Register(ctx, NewTerminateTool(opts.TerminateTool))
}
