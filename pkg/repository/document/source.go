package document

// QuerySource selects how Paginate builds its base cursor: a plain filter,
// free text searched across fields, or an aggregation pipeline.
type QuerySource interface {
	querySource()
}

type plainSource struct {
	filter Filter
}

type textSource struct {
	text   string
	fields []string
}

type pipelineSource struct {
	factory PipelineFactory
}

func (plainSource) querySource()    {}
func (textSource) querySource()     {}
func (pipelineSource) querySource() {}

// Plain queries with a filter document. A nil filter matches every document.
func Plain(filter Filter) QuerySource {
	return plainSource{filter: filter}
}

// Text searches text across fields, or across the collection's searchable
// fields when none are given.
func Text(text string, fields ...string) QuerySource {
	return textSource{text: text, fields: fields}
}

// Pipeline pages over the cursors factory produces. The factory is called
// once for the page and once for the total.
func Pipeline(factory PipelineFactory) QuerySource {
	return pipelineSource{factory: factory}
}
