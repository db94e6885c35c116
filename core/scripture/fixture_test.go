package scripture

// testDataset returns a small dataset shaped like the KJV JSON the reader ships.
func testDataset() *Dataset {
	nahum5 := Chapter{}
	for v := 1; v <= 10; v++ {
		nahum5[v] = "Nahum five verse"
	}

	return NewDataset("TEST", "Test Version", map[string]Book{
		"John": {
			3: {
				16: "For God so loved the world,",
				17: "For God sent not his Son into the world to condemn the world;",
				18: "He that believeth on him is not condemned:",
			},
			4: {
				1: "When therefore the Lord knew how the Pharisees had heard",
			},
		},
		"Psalms": {
			23: {
				1: "The LORD is my shepherd; I shall not want.",
				2: "He maketh me to lie down in green pastures:",
				3: "He restoreth my soul:",
			},
		},
		"1 Corinthians": {
			13: {
				4: "Charity suffereth long, and is kind;",
				5: "Doth not behave itself unseemly,",
				6: "Rejoiceth not in iniquity,",
				7: "Beareth all things,",
			},
		},
		"Song of Songs": {
			2: {1: "I am the rose of Sharon, and the lily of the valleys."},
		},
		"Revelation": {
			22: {21: "The grace of our Lord Jesus Christ be with you all. Amen."},
		},
		"Nahum": {
			5: nahum5,
		},
	})
}
