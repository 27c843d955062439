package model

// ListingRecord is the indexed history of one marketplace item, rebuilt from
// Offered and Bought logs.
type ListingRecord struct {
	ID          uint64 `json:"-" gorm:"primaryKey"`
	Market      string `json:"market" gorm:"index:idx_market_item,unique;size:42"`
	ItemId      uint64 `json:"item_id" gorm:"index:idx_market_item,unique"`
	Nft         string `json:"nft" gorm:"index:idx_nft_token;size:42"`
	TokenId     string `json:"token_id" gorm:"index:idx_nft_token"`
	Price       string `json:"price" gorm:"type:numeric"`
	Seller      string `json:"seller" gorm:"index:idx_seller;size:42"`
	Buyer       string `json:"buyer,omitempty" gorm:"index:idx_buyer;size:42"`
	Sold        bool   `json:"sold"`
	ListedHash  string `json:"listed_hash,omitempty"`
	ListedBlock uint64 `json:"listed_block,omitempty"`
	ListedTs    uint64 `json:"listed_ts,omitempty"`
	SoldHash    string `json:"sold_hash,omitempty"`
	SoldBlock   uint64 `json:"sold_block,omitempty"`
	SoldTs      uint64 `json:"sold_ts,omitempty"`
}

func (ListingRecord) TableName() string {
	return "listing_records"
}

// IndexerCursor persists the last block an indexer has applied.
type IndexerCursor struct {
	Market      string `gorm:"primaryKey;size:42"`
	BlockNumber uint64
}

func (IndexerCursor) TableName() string {
	return "indexer_cursors"
}
