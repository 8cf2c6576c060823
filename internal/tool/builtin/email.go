// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/emersion/go-message/mail"

	"love-agent/pkg/log"
)

const smtpDialTimeout = 30 * time.Second

// EmailConfig SMTP 发信配置；AuthCode 为邮箱授权码
type EmailConfig struct {
	Host     string
	Port     int
	StartTLS bool
	From     string
	AuthCode string
}

// SendFunc 投递一封完整的 RFC 5322 邮件
type SendFunc func(ctx context.Context, cfg EmailConfig, to string, msg []byte) error

type emailInput struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// NewEmailTool 发送 HTML 邮件的工具；send 为 nil 时使用 SMTP 投递。
// 投递失败以文本形式返回给模型，不作为工具错误。
func NewEmailTool(cfg EmailConfig, send SendFunc, logger *log.Logger) tool.InvokableTool {
	if send == nil {
		send = SendSMTP
	}
	logger = log.OrNop(logger)
	info := &schema.ToolInfo{
		Name: "sendEmail",
		Desc: "Sends an HTML formatted email through the configured SMTP service. " +
			"Requires the recipient's email address, subject line, and HTML content.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"to":      {Type: schema.String, Desc: "Recipient's email address", Required: true},
			"subject": {Type: schema.String, Desc: "Email subject line", Required: true},
			"content": {Type: schema.String, Desc: "HTML content of the email", Required: true},
		}),
	}
	return utils.NewTool(info, func(ctx context.Context, in emailInput) (string, error) {
		msg, err := ComposeHTML(cfg.From, in.To, in.Subject, in.Content)
		if err == nil {
			err = send(ctx, cfg, in.To, msg)
		}
		if err != nil {
			logger.Error("邮件发送失败", "to", in.To, "error", err)
			return "邮件发送失败: " + err.Error(), nil
		}
		logger.Info("邮件发送成功", "to", in.To)
		return "邮件已成功发送至 " + in.To, nil
	})
}

// ComposeHTML 构造单部分 text/html 邮件
func ComposeHTML(from, to, subject, html string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(subject)

	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", from, err)
	}
	h.SetAddressList("From", []*mail.Address{fromAddr})

	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("parse to address %q: %w", to, err)
	}
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}
	if _, err := io.WriteString(w, html); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}
	return buf.Bytes(), nil
}

// SendSMTP 每次投递新建连接：StartTLS 时明文连接后升级（587），否则隐式 TLS（465）
func SendSMTP(ctx context.Context, cfg EmailConfig, to string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialTimeout := smtpDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialTimeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	tlsCfg := &tls.Config{ServerName: cfg.Host}

	var conn net.Conn
	var err error
	if cfg.StartTLS {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	}
	if err != nil {
		return fmt.Errorf("dial SMTP %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create SMTP client on %s: %w", addr, err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}
	if cfg.StartTLS {
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}
	if cfg.AuthCode != "" {
		if err := client.Auth(smtp.PlainAuth("", bareAddress(cfg.From), cfg.AuthCode, cfg.Host)); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}
	if err := client.Mail(bareAddress(cfg.From)); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(bareAddress(to)); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", to, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}
	return client.Quit()
}

// bareAddress 从 "Name <addr>" 中取出 addr
func bareAddress(s string) string {
	if i := strings.LastIndexByte(s, '<'); i >= 0 && strings.HasSuffix(s, ">") {
		return s[i+1 : len(s)-1]
	}
	return s
}
