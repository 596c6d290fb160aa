package normalizer

// AlertID 从确认请求 {"id": ...} 中取报警 id
// id 缺失或为 null 时 ok=false（调用方按空操作处理）
func AlertID(p Payload) (id int64, ok bool, err error) {
	raw, present := p["id"]
	if !present || raw == nil {
		return 0, false, nil
	}
	id, err = parseInt(raw)
	if err != nil {
		return 0, false, fieldError("id", err)
	}
	return id, true, nil
}
