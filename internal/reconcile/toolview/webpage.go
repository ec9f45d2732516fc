package toolview

import "strconv"

// PageResult 单个 URL 的打开结果。Success 定义为不含 <error> 块。
type PageResult struct {
	URL     string `json:"url,omitempty"`
	Host    string `json:"host,omitempty"`
	Site    string `json:"site,omitempty"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OpenResult batch_open 动作的全部页面结果。
type OpenResult struct {
	TotalURLs    int          `json:"total_urls"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Pages        []PageResult `json:"pages"`
}

// ParseBatchOpen 解析批量网页打开输出:
//
//	<batch_open_results>
//	<batch_metadata><total_urls>N</total_urls>
//	<success_count>N</success_count><failure_count>N</failure_count></batch_metadata>
//	<url_result index="1">
//	  <error><code>..</code><message>..</message><failed_url>..</failed_url></error>
//	  或
//	  <page_metadata><url>..</url><host>..</host><site>..</site></page_metadata>
//	  <title>..</title><snippet>..</snippet><content>..</content>
//	</url_result>...
//	</batch_open_results>
func ParseBatchOpen(raw string) (*OpenResult, bool) {
	body, ok := firstTag(raw, "batch_open_results")
	if !ok {
		return nil, false
	}

	res := &OpenResult{}
	if meta, ok := firstTag(body, "batch_metadata"); ok {
		if n, ok := firstTag(meta, "total_urls"); ok {
			res.TotalURLs, _ = strconv.Atoi(n)
		}
		if n, ok := firstTag(meta, "success_count"); ok {
			res.SuccessCount, _ = strconv.Atoi(n)
		}
		if n, ok := firstTag(meta, "failure_count"); ok {
			res.FailureCount, _ = strconv.Atoi(n)
		}
	}

	for _, block := range allTags(body, "url_result") {
		pr := PageResult{}
		if errBlock, ok := firstTag(block, "error"); ok {
			pr.Success = false
			pr.Error, _ = firstTag(errBlock, "message")
			if pr.Error == "" {
				pr.Error, _ = firstTag(errBlock, "code")
			}
			pr.URL, _ = firstTag(errBlock, "failed_url")
		} else {
			pr.Success = true
			if meta, ok := firstTag(block, "page_metadata"); ok {
				pr.URL, _ = firstTag(meta, "url")
				pr.Host, _ = firstTag(meta, "host")
				pr.Site, _ = firstTag(meta, "site")
			}
			pr.Title, _ = firstTag(block, "title")
			pr.Snippet, _ = firstTag(block, "snippet")
			if content, ok := firstTag(block, "content"); ok {
				pr.Content = stripTag(content, "full_content_file")
			}
		}
		res.Pages = append(res.Pages, pr)
	}
	return res, true
}
