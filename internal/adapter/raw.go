package adapter

// 原始 JSON 文档的取值辅助
// 约定：encoding/json 解出的数值统一为 float64

// getMap 按路径取嵌套对象，任一层缺失返回 nil
func getMap(m RawRecord, path ...string) RawRecord {
	cur := m
	for _, key := range path {
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// getString 按路径取字符串，缺失或类型不符返回空串
func getString(m RawRecord, path ...string) string {
	if len(path) == 0 {
		return ""
	}
	parent := m
	if len(path) > 1 {
		parent = getMap(m, path[:len(path)-1]...)
	}
	if parent == nil {
		return ""
	}
	s, _ := parent[path[len(path)-1]].(string)
	return s
}

// getFloat 按路径取数值，缺失返回 (0, false)
func getFloat(m RawRecord, path ...string) (float64, bool) {
	if len(path) == 0 {
		return 0, false
	}
	parent := m
	if len(path) > 1 {
		parent = getMap(m, path[:len(path)-1]...)
	}
	if parent == nil {
		return 0, false
	}
	f, ok := parent[path[len(path)-1]].(float64)
	return f, ok
}

// getSlice 按路径取数组
func getSlice(m RawRecord, path ...string) []interface{} {
	if len(path) == 0 {
		return nil
	}
	parent := m
	if len(path) > 1 {
		parent = getMap(m, path[:len(path)-1]...)
	}
	if parent == nil {
		return nil
	}
	s, _ := parent[path[len(path)-1]].([]interface{})
	return s
}

// firstMap 数组首个对象元素
func firstMap(s []interface{}) RawRecord {
	if len(s) == 0 {
		return nil
	}
	m, _ := s[0].(map[string]interface{})
	return m
}

// searchNested 递归搜集嵌套文档中某个键的所有取值
func searchNested(v interface{}, key string) []interface{} {
	var matches []interface{}

	switch node := v.(type) {
	case map[string]interface{}:
		for k, val := range node {
			if k == key {
				matches = append(matches, val)
				continue
			}
			matches = append(matches, searchNested(val, key)...)
		}
	case []interface{}:
		for _, item := range node {
			matches = append(matches, searchNested(item, key)...)
		}
	}
	return matches
}
