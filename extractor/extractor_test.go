package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/req2cmd/commandtype"
	"github.com/x-research-team/req2cmd/denormalizer"
	"github.com/x-research-team/req2cmd/errs"
	"github.com/x-research-team/req2cmd/extractor"
	"github.com/x-research-team/req2cmd/internal/testcmd"
	"github.com/x-research-team/req2cmd/params"
	"github.com/x-research-team/req2cmd/request"
)

var (
	createUser  = commandtype.Of[testcmd.CreateUserCommand]()
	publishPost = commandtype.Of[testcmd.PublishPostCommand]()
)

func newCollector() *params.Collector {
	return params.NewCollector([]params.Registration{
		{Name: params.PathMapperName, Priority: params.PathMapperPriority, Mapper: params.PathParamsMapper{}},
	})
}

func TestParamsExtractor_Supports(t *testing.T) {
	t.Parallel()

	snap := request.NewSnapshot(request.Snapshot{})

	onlyCapability := extractor.NewParamsExtractor(newCollector(), denormalizer.Chain{
		denormalizer.DeserializableCommandDenormalizer{},
	})
	for i := 0; i < 3; i++ {
		assert.True(t, onlyCapability.Supports(createUser, snap))
		assert.False(t, onlyCapability.Supports(publishPost, snap))
		assert.False(t, onlyCapability.Supports(commandtype.Descriptor{}, snap))
	}

	withStruct := extractor.NewParamsExtractor(newCollector(), denormalizer.Chain{
		denormalizer.DeserializableCommandDenormalizer{},
		denormalizer.NewStructDenormalizer(nil),
	})
	assert.True(t, withStruct.Supports(publishPost, snap))
}

func TestParamsExtractor_Extract(t *testing.T) {
	t.Parallel()

	ex := extractor.NewParamsExtractor(newCollector(), denormalizer.DeserializableCommandDenormalizer{})
	snap := request.NewSnapshot(request.Snapshot{
		PathParams: map[string]string{"id": "42"},
		Body:       []byte(`{"name":"Bob"}`),
	})

	raw, err := ex.Extract(createUser, snap)
	require.NoError(t, err)
	assert.Equal(t, params.Params{"id": "42", "name": "Bob"}, raw)

	_, err = ex.Extract(publishPost, snap)
	require.ErrorIs(t, err, errs.ErrUnsupportedType)

	_, err = ex.Extract(createUser, request.NewSnapshot(request.Snapshot{Body: []byte("{")}))
	require.ErrorIs(t, err, errs.ErrExtractionFailed)
}

func TestJSONCodec(t *testing.T) {
	t.Parallel()

	codec := extractor.NewJSONCodec()
	assert.True(t, codec.Knows(publishPost))
	assert.False(t, codec.Knows(commandtype.Of[string]()))

	out, err := codec.Decode([]byte(`{"post_id":5,"title":"Hello","extra":true}`), publishPost)
	require.NoError(t, err)
	assert.Equal(t, &testcmd.PublishPostCommand{PostID: 5, Title: "Hello"}, out)

	out, err = codec.Decode(nil, publishPost)
	require.NoError(t, err)
	assert.Equal(t, &testcmd.PublishPostCommand{}, out)

	strict := extractor.NewJSONCodec(extractor.WithDisallowUnknownFields())
	_, err = strict.Decode([]byte(`{"post_id":5,"extra":true}`), publishPost)
	require.Error(t, err)

	types, err := commandtype.NewRegistry(publishPost)
	require.NoError(t, err)
	restricted := extractor.NewJSONCodec(extractor.WithKnownTypes(types))
	assert.True(t, restricted.Knows(publishPost))
	assert.False(t, restricted.Knows(createUser))
}

func TestCodecExtractor(t *testing.T) {
	t.Parallel()

	ex := extractor.NewCodecExtractor(extractor.NewJSONCodec())

	t.Run("успешно", func(t *testing.T) {
		t.Parallel()
		snap := request.NewSnapshot(request.Snapshot{Body: []byte(`{"post_id":5,"title":"Hello"}`)})
		require.True(t, ex.Supports(publishPost, snap))
		out, err := ex.Extract(publishPost, snap)
		require.NoError(t, err)
		assert.Equal(t, &testcmd.PublishPostCommand{PostID: 5, Title: "Hello"}, out)
	})

	t.Run("ошибка декодирования", func(t *testing.T) {
		t.Parallel()
		snap := request.NewSnapshot(request.Snapshot{Body: []byte(`{"post_id":"five"}`)})
		_, err := ex.Extract(publishPost, snap)
		require.ErrorIs(t, err, errs.ErrExtractionFailed)
	})

	t.Run("неподдерживаемый тип", func(t *testing.T) {
		t.Parallel()
		_, err := ex.Extract(commandtype.Of[string](), request.NewSnapshot(request.Snapshot{}))
		require.ErrorIs(t, err, errs.ErrUnsupportedType)
	})
}
