package toolview

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// TodoItem 任务列表中的单个步骤。
type TodoItem struct {
	Step       string            `json:"step"`
	Title      string            `json:"title"`
	Status     string            `json:"status"`
	Priority   string            `json:"priority,omitempty"`
	Details    string            `json:"details,omitempty"`
	DependsOn  []string          `json:"depends_on,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Timestamps map[string]string `json:"timestamps,omitempty"`
}

// TodoResult todo 工具的任务列表视图, 按 step 升序。
type TodoResult struct {
	Total int        `json:"total"`
	Items []TodoItem `json:"items"`
}

// 状态图标 → 状态名 (与后端 todo 工具的映射一致; 未知图标归为 not_started)。
var todoStatusIcons = map[string]string{
	"⏳": "pending",
	"🔄": "in_progress",
	"✅": "completed",
	"🚫": "blocked",
}

// 优先级图标 → 优先级名。
var todoPriorityIcons = map[string]string{
	"🔵": "low",
	"🟡": "medium",
	"🟠": "high",
	"🔴": "critical",
}

var (
	todoTotalRe = regexp.MustCompile(`📊 Total: (\d+) tasks`)
	todoStepRe  = regexp.MustCompile(`^(⏳|🔄|✅|🚫|📌) Step ([^:]+): (.*)$`)
	todoDepsRe  = regexp.MustCompile(`🔗 Depends on: \[([^\]]*)\]`)
	todoStampRe = regexp.MustCompile(`^(created_at|updated_at|modified_at|completed_at): (.+)$`)
)

// ParseTodo 解析 todo 工具输出:
//
//	<todo_result>
//	📊 Total: N tasks
//	Status: ✅ 1 | 🔄 1 | ⏳ 1
//	============================================================
//	✅ Step 1: 标题 🟡
//	  📝 备注
//	  🔗 Depends on: [1, 2]
//	  🏷️  #tag1, #tag2
//	  created_at: ...
//	</todo_result>
//
// 至少解析出一条任务行才算成功。
func ParseTodo(raw string) (*TodoResult, bool) {
	body, ok := firstTag(raw, "todo_result")
	if !ok {
		return nil, false
	}

	res := &TodoResult{}
	if m := todoTotalRe.FindStringSubmatch(body); m != nil {
		res.Total, _ = strconv.Atoi(m[1])
	}

	var cur *TodoItem
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := todoStepRe.FindStringSubmatch(trimmed); m != nil {
			item := TodoItem{
				Step:   strings.TrimSpace(m[2]),
				Title:  strings.TrimSpace(m[3]),
				Status: "not_started",
			}
			if st, ok := todoStatusIcons[m[1]]; ok {
				item.Status = st
			}
			// 标题末尾的优先级图标
			for icon, prio := range todoPriorityIcons {
				if strings.HasSuffix(item.Title, icon) {
					item.Priority = prio
					item.Title = strings.TrimSpace(strings.TrimSuffix(item.Title, icon))
					break
				}
			}
			res.Items = append(res.Items, item)
			cur = &res.Items[len(res.Items)-1]
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "📝"):
			cur.Details = strings.TrimSpace(strings.TrimPrefix(trimmed, "📝"))
		case strings.HasPrefix(trimmed, "🔗"):
			if m := todoDepsRe.FindStringSubmatch(trimmed); m != nil {
				for _, dep := range strings.Split(m[1], ",") {
					if dep = strings.TrimSpace(dep); dep != "" {
						cur.DependsOn = append(cur.DependsOn, dep)
					}
				}
			}
		case strings.HasPrefix(trimmed, "🏷️"):
			for _, tag := range strings.Split(strings.TrimPrefix(trimmed, "🏷️"), ",") {
				tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
				if tag != "" {
					cur.Tags = append(cur.Tags, tag)
				}
			}
		default:
			if m := todoStampRe.FindStringSubmatch(trimmed); m != nil {
				if cur.Timestamps == nil {
					cur.Timestamps = make(map[string]string)
				}
				cur.Timestamps[m[1]] = m[2]
			}
		}
	}

	if len(res.Items) == 0 {
		return nil, false
	}
	if res.Total == 0 {
		res.Total = len(res.Items)
	}

	// step 升序; 数字步骤按数值比较
	sort.SliceStable(res.Items, func(i, j int) bool {
		a, errA := strconv.Atoi(res.Items[i].Step)
		b, errB := strconv.Atoi(res.Items[j].Step)
		if errA == nil && errB == nil {
			return a < b
		}
		return res.Items[i].Step < res.Items[j].Step
	})
	return res, true
}
