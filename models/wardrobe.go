package models

type ClothingItem struct {
	JsonModel
	Name             string      `json:"name"`
	Category         Category    `json:"category"` // superior, inferior, sapato, acessorio
	Type             *string     `json:"type"`
	Color            *string     `json:"color"`
	Pattern          *string     `json:"pattern"`
	Material         *string     `json:"material"`
	Style            *string     `json:"style"`
	DescriptionShort *string     `gorm:"type:text" json:"description_short"`
	DescriptionLong  *string     `gorm:"type:text" json:"description_long"`
	Owner            UserAccount `json:"-"`
	OwnerID          uint        `json:"-"`
	ImageStatus      string      `json:"image_status"` // draft, uploaded, processed
	ImageURL         *string     `json:"image_url"`    // object key in the wardrobe bucket
}

type Look struct {
	JsonModel
	Name        string      `json:"name"`
	Occasion    Occasion    `json:"occasion"`
	Description *string     `gorm:"type:text" json:"description"`
	Owner       UserAccount `json:"-"`
	OwnerID     uint        `json:"-"`
	Items       []LookItem  `gorm:"foreignKey:LookID" json:"items"`
}

type LookItem struct {
	JsonModel
	LookID         uint         `json:"-"`
	ClothingItemID uint         `json:"clothing_item_id"`
	ClothingItem   ClothingItem `json:"clothing_item"`
}
