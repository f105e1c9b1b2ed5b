package util

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/ratelimit"
)

// NonRetryableHTTPError 表示不应重试的HTTP异常（4xx）
type NonRetryableHTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *NonRetryableHTTPError) Error() string {
	return e.Message
}

// HTTPStatusError 可重试的HTTP状态码异常（5xx、408、429）
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.URL)
}

// HTTPOptions HTTP工具配置
type HTTPOptions struct {
	Timeout            time.Duration     // 单次请求超时，包含读取响应体
	ProxyURL           string            // 代理地址
	UserAgent          string            // User-Agent
	Headers            map[string]string // 每个请求附带的头
	RateLimit          int               // 每秒请求数上限，0 表示不限制
	InsecureSkipVerify bool              // 跳过证书校验
	MaxRedirects       int               // 最大跳转次数
}

// DefaultHTTPOptions 默认HTTP配置
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Timeout:      10 * time.Second,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		RateLimit:    20,
		MaxRedirects: 10,
	}
}

// HTTPUtil HTTP工具类
type HTTPUtil struct {
	client  *http.Client
	options HTTPOptions
	limiter ratelimit.Limiter
}

// NewHTTPUtil 创建HTTP工具实例
func NewHTTPUtil(options HTTPOptions) *HTTPUtil {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: options.InsecureSkipVerify},
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: options.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	// 设置代理
	if options.ProxyURL != "" {
		if proxy, err := url.Parse(options.ProxyURL); err == nil {
			tr.Proxy = http.ProxyURL(proxy)
		}
	}

	client := &http.Client{
		Transport: tr,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 不自动跳转，手动处理以保留headers
			return http.ErrUseLastResponse
		},
	}

	limiter := ratelimit.NewUnlimited()
	if options.RateLimit > 0 {
		limiter = ratelimit.New(options.RateLimit)
	}
	if options.MaxRedirects <= 0 {
		options.MaxRedirects = 10
	}

	return &HTTPUtil{
		client:  client,
		options: options,
		limiter: limiter,
	}
}

// withTimeout 为单次请求附加超时
func (h *HTTPUtil) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.options.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.options.Timeout)
}

// waitRateLimit 等待限速许可，取消时立即返回
func (h *HTTPUtil) waitRateLimit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	granted := make(chan struct{})
	go func() {
		h.limiter.Take()
		close(granted)
	}()
	select {
	case <-granted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doGet 执行GET请求
func (h *HTTPUtil) doGet(ctx context.Context, urlStr string, headers map[string]string, redirects int) (*http.Response, error) {
	Logger.Debug("正在获取: %s", urlStr)

	if err := h.waitRateLimit(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &NonRetryableHTTPError{URL: urlStr, Message: fmt.Sprintf("无效的URL %s: %v", urlStr, err)}
	}

	// 设置默认headers
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Cache-Control", "no-cache")
	if h.options.UserAgent != "" {
		req.Header.Set("User-Agent", h.options.UserAgent)
	}
	for key, value := range h.options.Headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}

	// 手动处理重定向
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location := resp.Header.Get("Location")
		if location != "" {
			resp.Body.Close()
			if redirects >= h.options.MaxRedirects {
				return nil, &NonRetryableHTTPError{StatusCode: resp.StatusCode, URL: urlStr, Message: "重定向次数过多: " + urlStr}
			}
			redirectURL := location
			if base, err := url.Parse(urlStr); err == nil {
				if ref, err := url.Parse(location); err == nil {
					redirectURL = base.ResolveReference(ref).String()
				}
			}
			Logger.Debug("重定向到: %s", redirectURL)
			return h.doGet(ctx, redirectURL, headers, redirects+1)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		if isNonRetryableStatusCode(resp.StatusCode) {
			return nil, &NonRetryableHTTPError{
				StatusCode: resp.StatusCode,
				URL:        urlStr,
				Message:    fmt.Sprintf("HTTP %s: %s", resp.Status, urlStr),
			}
		}
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: urlStr, Status: resp.Status}
	}

	return resp, nil
}

// readBody 读取响应体，处理 gzip 压缩
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Encoding")), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("创建gzip reader失败: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	return io.ReadAll(reader)
}

// fetch 获取数据和最终URL
func (h *HTTPUtil) fetch(ctx context.Context, urlStr string, headers map[string]string) ([]byte, string, error) {
	if strings.HasPrefix(urlStr, "file:") {
		fileURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, "", &NonRetryableHTTPError{URL: urlStr, Message: err.Error()}
		}
		data, err := readFile(fileURL.Path)
		if err != nil {
			return nil, "", &NonRetryableHTTPError{URL: urlStr, Message: err.Error()}
		}
		return data, urlStr, nil
	}

	reqCtx, cancel := h.withTimeout(ctx)
	defer cancel()

	resp, err := h.doGet(reqCtx, urlStr, headers, 0)
	if err != nil {
		return nil, "", h.wrapTimeout(ctx, urlStr, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, "", h.wrapTimeout(ctx, urlStr, err)
	}

	Logger.Debug("获取到 %d 字节数据", len(data))
	return data, resp.Request.URL.String(), nil
}

// wrapTimeout 单次请求超时属于可重试的网络错误，外层取消原样返回
func (h *HTTPUtil) wrapTimeout(parent context.Context, urlStr string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("请求超时 (%v): %s: %w", h.options.Timeout, urlStr, ErrRequestTimeout)
	}
	return err
}

// ErrRequestTimeout 单次请求超时
var ErrRequestTimeout = errors.New("request timeout")

// GetBytes 获取字节数据
func (h *HTTPUtil) GetBytes(ctx context.Context, urlStr string, headers map[string]string) ([]byte, error) {
	data, _, err := h.fetch(ctx, urlStr, headers)
	return data, err
}

// GetString 获取字符串源码
func (h *HTTPUtil) GetString(ctx context.Context, urlStr string, headers map[string]string) (string, error) {
	data, _, err := h.fetch(ctx, urlStr, headers)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetStringAndURL 获取字符串源码和最终URL
func (h *HTTPUtil) GetStringAndURL(ctx context.Context, urlStr string, headers map[string]string) (string, string, error) {
	data, finalURL, err := h.fetch(ctx, urlStr, headers)
	if err != nil {
		return "", "", err
	}
	return string(data), finalURL, nil
}

// isNonRetryableStatusCode 4xx 中除 408 和 429 以外都不可重试
func isNonRetryableStatusCode(statusCode int) bool {
	if statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests {
		return false
	}
	return statusCode >= 400 && statusCode < 500
}
