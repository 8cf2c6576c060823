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

// Package stream 流式回复的终止判断、身份介绍过滤与增量输出
package stream

import (
	"strings"
	"unicode"

	"github.com/cloudwego/eino/schema"

	"love-agent/pkg/config"
)

// Rule 触发终止的规则
type Rule string

const (
	RuleNone       Rule = ""
	RuleQuestion   Rule = "question"
	RuleWaitPhrase Rule = "wait_phrase"
	RuleMaxChars   Rule = "max_chars"
	RuleEOF        Rule = "eof"
)

// Config 终止与过滤参数，长度单位均为字符
type Config struct {
	QuestionWindow  int // 问号距末尾不超过该字数
	QuestionTail    int // 问号后去空白的内容少于该字数
	MaxChars        int
	WaitPhrases     []string
	IdentityPhrases []string // 靠前者优先匹配
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		QuestionWindow:  config.DefaultQuestionWindow,
		QuestionTail:    config.DefaultQuestionTail,
		MaxChars:        config.DefaultMaxChars,
		WaitPhrases:     append([]string(nil), config.DefaultWaitPhrases...),
		IdentityPhrases: append([]string(nil), config.DefaultIdentityPhrases...),
	}
}

// FromConfig 由应用配置构造
func FromConfig(c config.StreamConfig) Config {
	return Config{
		QuestionWindow:  c.QuestionWindow,
		QuestionTail:    c.QuestionTail,
		MaxChars:        c.MaxChars,
		WaitPhrases:     c.WaitPhrases,
		IdentityPhrases: c.IdentityPhrases,
	}
}

// State 单个流式轮次的累积状态；Step 返回新值，不修改旧值
type State struct {
	Raw       string // 已收到的全部原文
	Emitted   string // 已输出内容的快照（水位线）
	Finalized bool
	Rule      Rule
	Regressed bool // 曾出现可见内容与已输出内容分叉（已输出部分无法撤回）
}

// Terminator 一个流式轮次的终止器；Suppress 为 true 时过滤身份介绍
type Terminator struct {
	cfg      Config
	suppress bool
	phrases  [][]rune
}

// WithDefaults 未设置的字段取默认值；调用方与终止器看到同一份短语表
func (cfg Config) WithDefaults() Config {
	def := DefaultConfig()
	if len(cfg.WaitPhrases) == 0 {
		cfg.WaitPhrases = def.WaitPhrases
	}
	if len(cfg.IdentityPhrases) == 0 {
		cfg.IdentityPhrases = def.IdentityPhrases
	}
	if cfg.QuestionWindow <= 0 {
		cfg.QuestionWindow = def.QuestionWindow
	}
	if cfg.QuestionTail <= 0 {
		cfg.QuestionTail = def.QuestionTail
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	return cfg
}

// New 创建终止器；suppress 通常由 HasIntroduced(history) 决定
func New(cfg Config, suppress bool) *Terminator {
	cfg = cfg.WithDefaults()
	t := &Terminator{cfg: cfg, suppress: suppress}
	for _, p := range cfg.IdentityPhrases {
		if p != "" {
			t.phrases = append(t.phrases, []rune(p))
		}
	}
	return t
}

// Suppressing 是否启用身份过滤
func (t *Terminator) Suppressing() bool {
	return t.suppress
}

// HasIntroduced 历史中是否有助手消息包含任一身份介绍
func HasIntroduced(history []*schema.Message, phrases []string) bool {
	for _, m := range history {
		if m == nil || m.Role != schema.Assistant {
			continue
		}
		for _, p := range phrases {
			if p != "" && strings.Contains(m.Content, p) {
				return true
			}
		}
	}
	return false
}

// StopPoint 对原文评估全部终止规则；返回截断位置（字符）与优先级最高的触发规则，
// 多条规则同时触发时截断位置取最小值。未触发返回 (-1, RuleNone)。
func (t *Terminator) StopPoint(raw []rune) (int, Rule) {
	n := len(raw)
	point, rule := -1, RuleNone
	fire := func(p int, r Rule) {
		if point < 0 || p < point {
			point = p
		}
		if rule == RuleNone {
			rule = r
		}
	}

	if q := lastQuestionMark(raw); q >= 0 && n-q-1 <= t.cfg.QuestionWindow {
		if len(trimSpace(raw[q+1:])) < t.cfg.QuestionTail {
			fire(q+1, RuleQuestion)
		}
	}
	for _, w := range t.cfg.WaitPhrases {
		if w == "" {
			continue
		}
		wr := []rune(w)
		if i := indexRunes(raw, wr); i >= 0 {
			fire(i+len(wr), RuleWaitPhrase)
		}
	}
	if n > t.cfg.MaxChars {
		fire(t.cfg.MaxChars, RuleMaxChars)
	}
	return point, rule
}

// Suppress 从左到右移除身份介绍（每个位置取第一个匹配的短语），
// 同时移除其两侧相邻的标点与空白。未启用过滤时原样返回。
func (t *Terminator) Suppress(text string) string {
	if !t.suppress || len(t.phrases) == 0 {
		return text
	}
	return string(t.suppressRunes([]rune(text)))
}

func (t *Terminator) suppressRunes(in []rune) []rune {
	out := make([]rune, 0, len(in))
	for i := 0; i < len(in); {
		if p := t.matchAt(in, i); p != nil {
			for len(out) > 0 && isSeparator(out[len(out)-1]) {
				out = out[:len(out)-1]
			}
			i += len(p)
			for i < len(in) && isSeparator(in[i]) {
				i++
			}
			continue
		}
		out = append(out, in[i])
		i++
	}
	return out
}

func (t *Terminator) matchAt(in []rune, i int) []rune {
	for _, p := range t.phrases {
		if hasPrefixRunes(in[i:], p) {
			return p
		}
	}
	return nil
}

// holdBack 过滤开启且未终止时，末尾可能是身份介绍开头的部分（连同其前的标点空白）暂不输出
func (t *Terminator) holdBack(visible []rune) int {
	keep := len(visible)
	for k := len(visible); k > 0; k-- {
		start := len(visible) - k
		if t.isProperPrefix(visible[start:]) {
			keep = start
			break
		}
	}
	for keep > 0 && isSeparator(visible[keep-1]) {
		keep--
	}
	return keep
}

func (t *Terminator) isProperPrefix(s []rune) bool {
	for _, p := range t.phrases {
		if len(s) < len(p) && hasPrefixRunes(p, s) {
			return true
		}
	}
	return false
}

// Step 消费一个分片，返回新状态与本次应输出的增量（可能为空）。终止后的分片被丢弃。
func (t *Terminator) Step(st State, chunk string) (State, string) {
	if st.Finalized {
		return st, ""
	}
	st.Raw += chunk
	raw := []rune(st.Raw)

	filtered := raw
	point, rule := t.StopPoint(raw)
	if point >= 0 {
		filtered = raw[:point]
		st.Finalized = true
		st.Rule = rule
	}
	visible := filtered
	if t.suppress {
		visible = t.suppressRunes(filtered)
		if !st.Finalized {
			keep := t.holdBack(visible)
			// 已输出的部分不能再被扣留
			if floor := commonPrefixRunes([]rune(st.Emitted), visible); keep < floor {
				keep = floor
			}
			visible = visible[:keep]
		}
	}
	return emit(st, string(visible))
}

// Finish 上游结束且未触发任何规则时，以当前全部内容终止
func (t *Terminator) Finish(st State) (State, string) {
	if st.Finalized {
		return st, ""
	}
	st.Finalized = true
	st.Rule = RuleEOF
	return emit(st, t.Suppress(st.Raw))
}

// Text 当前可见的完整内容（终止后即为最终内容）
func (st State) Text() string {
	return st.Emitted
}

// emit 水位线 Emitted 即已输出内容，只追加不回退。visible 是其延伸时增量为超出部分；
// 与已输出内容分叉时（已输出的文字无法撤回）记 Regressed，只追加 visible 中超出水位线长度的部分。
func emit(st State, visible string) (State, string) {
	emitted, vis := []rune(st.Emitted), []rune(visible)
	lcp := commonPrefixRunes(emitted, vis)
	if lcp < len(emitted) && lcp < len(vis) {
		st.Regressed = true
	}
	if len(vis) <= len(emitted) {
		return st, ""
	}
	delta := string(vis[len(emitted):])
	st.Emitted += delta
	return st, delta
}

// commonPrefixRunes 公共前缀的字符数
func commonPrefixRunes(a, b []rune) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func lastQuestionMark(s []rune) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '？' || s[i] == '?' {
			return i
		}
	}
	return -1
}

func trimSpace(s []rune) []rune {
	start, end := 0, len(s)
	for start < end && unicode.IsSpace(s[start]) {
		start++
	}
	for end > start && unicode.IsSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if hasPrefixRunes(s[i:], sub) {
			return i
		}
	}
	return -1
}

func hasPrefixRunes(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i := range prefix {
		if s[i] != prefix[i] {
			return false
		}
	}
	return true
}

func isSeparator(r rune) bool {
	switch r {
	case '。', '，', '、', '.', ',':
		return true
	}
	return unicode.IsSpace(r)
}
