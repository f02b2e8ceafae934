package specification

import "gorm.io/gorm"

// ByScopeAndKey filters learning sources stored under one key in a scope.
type ByScopeAndKey struct {
	ScopeId   string
	SourceKey string
}

func (s ByScopeAndKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("scope_id = ? AND source_key = ?", s.ScopeId, s.SourceKey)
}

type ByStudentID struct {
	StudentId string
}

func (s ByStudentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("student_id = ?", s.StudentId)
}

// InState filters generation jobs by their persisted state name.
type InState struct {
	State string
}

func (s InState) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("state = ?", s.State)
}
