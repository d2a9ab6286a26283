package metadata

// 元数据表中的键
const (
	// ArchivedListLengthKey 是上次对账时 game:list 的长度，
	// 在此之前的条目都已归档。
	ArchivedListLengthKey = "archived_list_length"

	// LastRebuildAtKey 记录上次从归档重建Redis的时间。
	LastRebuildAtKey = "last_rebuild_at"
)
