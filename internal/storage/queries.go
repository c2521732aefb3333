package storage

import "context"

// LogQuery 记录一次聊天问答
func (s *Store) LogQuery(ctx context.Context, q *UserQuery) error {
	q.Question = toValidUTF8(q.Question)
	q.Response = toValidUTF8(q.Response)
	return s.DB.WithContext(ctx).Create(q).Error
}

// RecentQueries 最近的问答记录
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]UserQuery, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []UserQuery
	err := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}
