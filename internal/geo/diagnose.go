package geo

import (
	"errors"
	"fmt"
)

// Diagnose turns a failure into GuessCount displayable entries: what
// failed, why, what to do about it, and the raw detail.
func Diagnose(sel Selection, err error) []Guess {
	var ge *Error
	if !errors.As(err, &ge) {
		ge = &Error{Kind: ProviderError, Provider: sel, Err: err}
	}
	name := sel.DisplayName()

	var headline, reason, remedy string
	switch ge.Kind {
	case InvalidImageData:
		headline = "图片数据无效 (Invalid image data)"
		reason = "无法解析上传的图片"
		remedy = "请重新选择 JPG/PNG/WebP 图片"
	case MissingCredential:
		headline = "缺少 " + credentialName(sel) + " (Missing API key)"
		reason = name + " 未配置 API Key"
		if sel == ProviderOpenAI {
			remedy = "请在管理后台 AI 设置中填写 API Key"
		} else {
			remedy = "请设置环境变量 GEMINI_API_KEY"
		}
	case AuthError:
		headline = name + " 认证失败 (Authentication failed)"
		reason = "API Key 无效或已过期"
		remedy = "请检查 API Key"
	case VisionUnsupported:
		headline = name + " 模型不支持图片 (Vision unsupported)"
		reason = "当前模型无法识别图片"
		remedy = "请更换支持视觉的模型，如 gpt-4o"
	case MalformedResponse:
		headline = name + " 返回格式异常 (Malformed response)"
		reason = "AI 未返回 4 个有效结果"
		remedy = "Retry later"
	default:
		headline = name + " 连接失败 (Connection failed)"
		reason = "请求未成功"
		remedy = "Please check network"
	}

	return []Guess{
		{Label: headline, Error: true},
		{Label: reason, Error: true},
		{Label: remedy, Error: true},
		{Label: detail(ge), Error: true},
	}
}

func credentialName(sel Selection) string {
	if sel == ProviderOpenAI {
		return "OpenAI API Key"
	}
	return "GEMINI_API_KEY"
}

func detail(e *Error) string {
	switch {
	case e.Status != 0 && e.Body != "":
		return truncate(fmt.Sprintf("HTTP %d: %s", e.Status, e.Body), 120)
	case e.Status != 0:
		return fmt.Sprintf("HTTP %d", e.Status)
	case e.Err != nil:
		return truncate(e.Err.Error(), 120)
	default:
		return e.Kind.String()
	}
}
