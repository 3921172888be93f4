package metrics

// Label 指标标签。标签值应保持低基数，不要使用请求 ID、服务实例 ID 等。
type Label struct {
	Key   string
	Value string
}

// L 创建一个 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
