package models

// OrderNumberSequence is the single-row global order number counter. All
// allocation goes through one atomic UPDATE ... RETURNING statement.
type OrderNumberSequence struct {
	ID    int   `gorm:"column:id;primaryKey"`
	Value int64 `gorm:"column:value;not null"`
}
