// Package lookalike is a Go client for visual product search sessions.
//
// A Client talks to a ranking oracle: a service that ranks catalog products by
// visual similarity to an uploaded image, an image URL or a catalog product.
// Each Session owns one search lifecycle (idle, searching, error, ready), a
// bounded history of recent results and the filter settings used to render them.
//
//	client, _ := lookalike.New(lookalike.WithOracleURL("http://localhost:5000"))
//	s := client.NewSession()
//	defer s.Close()
//
//	_ = s.SearchURL(ctx, "https://example.com/shoe.jpg")
//	_ = s.Await(ctx)
//	s.SetSort(lookalike.SortByPrice)
//	for _, card := range s.View().Products {
//	    fmt.Println(card.Name, card.Similarity, card.Band)
//	}
//
// Searches run in the background: at most one request is in flight per
// session, and a second search while one is running returns ErrBusy.
package lookalike
