package models

import "time"

// Product represents a catalog entry.
type Product struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"nome" gorm:"column:nome;type:varchar(255);not null"`
	Price       float64   `json:"preco" gorm:"column:preco;not null"`
	Description *string   `json:"descricao" gorm:"column:descricao;type:text"`
	CreatedAt   time.Time `json:"createdAt" gorm:"column:createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"column:updatedAt"`
}

// TableName keeps the table shared with existing catalog databases.
func (Product) TableName() string {
	return "produtos"
}

// DescriptionText returns the description or an empty string when it is null.
func (p Product) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}
