package catalog

// SampleSnapshot returns the demo catalog the storefront falls back to when
// its backend is unreachable.
func SampleSnapshot() Snapshot {
	return Snapshot{
		Categories: []Category{
			{ID: "1", Name: "Electronics", Description: "Latest gadgets and electronics"},
			{ID: "2", Name: "Fashion", Description: "Trendy clothing and accessories"},
		},
		Products: map[string][]Product{
			"1": {
				{
					ID:               "1",
					CategoryID:       "1",
					Name:             "Wireless Bluetooth Headphones",
					ShortDescription: "High-quality wireless headphones with noise cancellation",
					ImageURL:         "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=400&h=300&fit=crop",
					Price:            99.99,
				},
				{
					ID:               "2",
					CategoryID:       "1",
					Name:             "Smart Watch",
					ShortDescription: "Feature-rich smartwatch with health monitoring",
					ImageURL:         "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=400&h=300&fit=crop",
					Price:            199.99,
				},
			},
			"2": {
				{
					ID:               "3",
					CategoryID:       "2",
					Name:             "Casual T-Shirt",
					ShortDescription: "Comfortable cotton t-shirt for everyday wear",
					ImageURL:         "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400&h=300&fit=crop",
					Price:            24.99,
				},
				{
					ID:               "4",
					CategoryID:       "2",
					Name:             "Running Shoes",
					ShortDescription: "Lightweight running shoes with great cushioning",
					ImageURL:         "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=400&h=300&fit=crop",
					Price:            89.99,
				},
			},
		},
	}
}
