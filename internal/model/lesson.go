package model

// Lesson 课程内容由外围内容库维护，这里只读，用来给提交盖上下文
// swagger:model Lesson
type Lesson struct {
	BaseModel
	Title string `gorm:"size:255;not null" json:"title"`
	Topic string `gorm:"size:100;index" json:"topic"`
}

func (Lesson) TableName() string {
	return "lessons"
}
