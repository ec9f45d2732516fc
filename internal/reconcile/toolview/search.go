package toolview

import "strconv"

// SearchItem 单条搜索结果。CiteIndex 形如 "web_1a2b3c4d", 与引用存储的
// 键一致。
type SearchItem struct {
	CiteIndex     string `json:"cite_index"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Site          string `json:"site,omitempty"`
	PublishedTime string `json:"published_time,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
	Content       string `json:"content,omitempty"`
}

// SearchQueryResult 一个查询的结果块。
type SearchQueryResult struct {
	Query       string       `json:"query"`
	ResultCount int          `json:"result_count"`
	Items       []SearchItem `json:"items"`
}

// SearchResult batch_search 动作的全部查询结果。
type SearchResult struct {
	Queries []SearchQueryResult `json:"queries"`
}

// ParseBatchSearch 解析批量搜索输出:
//
//	<batch_search_results>
//	<query_result index="1">
//	<query_metadata><query>...</query><result_count>N</result_count></query_metadata>
//	<items><item index="1"><cite_index>..</cite_index><title>..</title>
//	<url>..</url><site>..</site><published_time>..</published_time>
//	<snippet>..</snippet><content>..</content></item>...</items>
//	</query_result>...
//	</batch_search_results>
//
// 识别依据是外层包裹标签; 包裹存在但查询为零也算解析成功。
func ParseBatchSearch(raw string) (*SearchResult, bool) {
	body, ok := firstTag(raw, "batch_search_results")
	if !ok {
		return nil, false
	}

	res := &SearchResult{}
	for _, block := range allTags(body, "query_result") {
		qr := SearchQueryResult{}
		if meta, ok := firstTag(block, "query_metadata"); ok {
			qr.Query, _ = firstTag(meta, "query")
			if n, ok := firstTag(meta, "result_count"); ok {
				qr.ResultCount, _ = strconv.Atoi(n)
			}
		}
		for _, item := range allTags(block, "item") {
			si := SearchItem{}
			si.CiteIndex, _ = firstTag(item, "cite_index")
			si.Title, _ = firstTag(item, "title")
			si.URL, _ = firstTag(item, "url")
			si.Site, _ = firstTag(item, "site")
			si.PublishedTime, _ = firstTag(item, "published_time")
			si.Snippet, _ = firstTag(item, "snippet")
			if content, ok := firstTag(item, "content"); ok {
				// 截断提示标签只对 Agent 有意义, 展示时剥掉
				si.Content = stripTag(content, "full_content_file")
			}
			qr.Items = append(qr.Items, si)
		}
		res.Queries = append(res.Queries, qr)
	}
	return res, true
}
