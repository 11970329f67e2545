package settings

import "time"

func (s *UnitTestSuite) TestTTLCache() {
	now := time.Unix(1_700_000_000, 0)
	SetTimeNowFn(func() time.Time { return now })

	c := NewTTL[string, string]()
	c.Set("key1", "value1", 200*time.Millisecond)
	v, ok := c.Get("key1")
	s.True(ok)
	s.Equal("value1", v)

	now = now.Add(250 * time.Millisecond)
	v, ok = c.Get("key1")
	s.False(ok)
	s.Equal("", v)

	c.Set("key2", "value2", time.Minute)
	c.Delete("key2")
	_, ok = c.Get("key2")
	s.False(ok)
}
