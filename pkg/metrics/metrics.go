package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnTotal, TurnDuration,
		AgentSteps, ToolDuration, ToolFailTotal,
		HistoryTruncationTotal, StreamStopTotal, IdentitySuppressedTotal,
		LLMTokensTotal, RateLimitWaitSeconds,
		HTTPRequestsTotal, HTTPRequestDuration,
	)
}

// TurnTotal 对话轮次总数（按模式与结果）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "love_agent_turn_total",
		Help: "对话轮次总数",
	},
	[]string{"mode", "status"}, // mode: chat | stream | tools | report | manus；status: ok | error | step_limit
)

// TurnDuration 对话轮次耗时（秒）
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "love_agent_turn_duration_seconds",
		Help:    "对话轮次耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"mode"},
)

// AgentSteps 单轮 think/act 步数分布
var AgentSteps = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "love_agent_steps",
		Help:    "单轮 Agent 执行的步数",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
	},
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "love_agent_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFailTotal 工具调用失败总数（含未知工具）
var ToolFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "love_agent_tool_fail_total",
		Help: "工具调用失败总数",
	},
	[]string{"tool"},
)

// HistoryTruncationTotal 历史超出预算被截断的次数
var HistoryTruncationTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "love_agent_history_truncation_total",
		Help: "历史截断次数",
	},
)

// StreamStopTotal 流式输出终止原因
var StreamStopTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "love_agent_stream_stop_total",
		Help: "流式输出终止次数（按规则）",
	},
	[]string{"rule"}, // question | wait_phrase | max_chars | eof
)

// IdentitySuppressedTotal 启用身份过滤的流式轮次数
var IdentitySuppressedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "love_agent_identity_suppressed_total",
		Help: "启用身份介绍过滤的流式轮次数",
	},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "love_agent_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待耗时
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "love_agent_rate_limit_wait_seconds",
		Help:    "LLM 调用前的限流等待耗时（秒）",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"provider"},
)

// HTTPRequestsTotal HTTP 请求总数
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "love_agent_http_requests_total",
		Help: "HTTP 请求总数",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration HTTP 请求耗时（流式接口为建立响应的耗时）
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "love_agent_http_request_duration_seconds",
		Help:    "HTTP 请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 复用）
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
