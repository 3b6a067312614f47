package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Tutor   UserRole = "tutor"
	Admin   UserRole = "admin"
)

// ReadingLevel 学习者当前的阅读/写作难度等级，有序，只能通过记录在案的调整变更
type ReadingLevel string

const (
	LevelBeginner     ReadingLevel = "beginner"
	LevelIntermediate ReadingLevel = "intermediate"
	LevelAdvanced     ReadingLevel = "advanced"
)

var levelOrder = []ReadingLevel{LevelBeginner, LevelIntermediate, LevelAdvanced}

func (l ReadingLevel) Rank() int {
	for i, lv := range levelOrder {
		if lv == l {
			return i
		}
	}
	return -1
}

func (l ReadingLevel) IsValid() bool {
	return l.Rank() >= 0
}

// StepUp 升一级，已是最高级则原样返回
func (l ReadingLevel) StepUp() ReadingLevel {
	r := l.Rank()
	if r < 0 || r >= len(levelOrder)-1 {
		return l
	}
	return levelOrder[r+1]
}

// StepDown 降一级，最低级封底
func (l ReadingLevel) StepDown() ReadingLevel {
	r := l.Rank()
	if r <= 0 {
		return l
	}
	return levelOrder[r-1]
}

// Learner 学习者账号由外围用户系统管理，本服务只读写能力相关字段
// swagger:model Learner
type Learner struct {
	BaseModel
	Name  string   `gorm:"size:100;not null" json:"name"`
	Email string   `gorm:"size:100;unique;not null" json:"email"`
	Role  UserRole `gorm:"type:varchar(20);default:'student'" json:"role"`

	ReadingLevel ReadingLevel `gorm:"type:varchar(20);default:'intermediate'" json:"readingLevel"`
	// EssaySeq 已持久化的作文序号，单调递增
	EssaySeq int `gorm:"default:0" json:"essaySeq"`
	// ConsecutiveStrong 当前等级下连续达到 good 及以上的作文数
	ConsecutiveStrong int `gorm:"default:0" json:"consecutiveStrong"`
	// ComprehensionScore 最近若干次评估分数的指数加权均值
	ComprehensionScore float64   `gorm:"default:0" json:"comprehensionScore"`
	LastActive         time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastActive"`
}

func (Learner) TableName() string {
	return "learners"
}
